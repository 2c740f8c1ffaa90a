package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"exam-ocr/api/internal/config"
	"exam-ocr/api/internal/handle"
	"exam-ocr/api/internal/httpserver"
	"exam-ocr/api/internal/ocr"
	"exam-ocr/api/internal/ocr/gemini"
	"exam-ocr/api/internal/ocr/openai"
	"exam-ocr/api/internal/ocr/yandex"
	"exam-ocr/api/internal/payload"
	"exam-ocr/api/internal/preview"
	"exam-ocr/api/internal/session"
	"exam-ocr/api/internal/telegram"
	"exam-ocr/api/internal/web"
)

const janitorInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	log, err := newLogger(cfg.LogDev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("exit", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	engines := &ocr.Engines{
		Gemini: gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel),
		OpenAI: openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL),
		Yandex: yandex.New(cfg.YCOAuthToken, cfg.YCFolderID),
	}
	engine, err := engines.GetEngine(cfg.Engine)
	if err != nil {
		return err
	}
	client := ocr.NewClient(engine,
		ocr.WithTimeout(cfg.ExtractTimeout),
		ocr.WithMessages(ocr.MessagesFor(cfg.Lang)),
		ocr.WithLogger(log.Named("ocr")),
	)
	log.Info("extraction engine", zap.String("engine", engine.Name()), zap.String("model", engine.GetModel()))

	previews := preview.NewStore()
	encoder := payload.NewEncoder(previews, cfg.MaxUploadBytes, cfg.MaxImagePixels)
	sessions := session.NewManager(client, previews, cfg.SessionTTL, log.Named("session"),
		session.WithFailedReason(ocr.MessagesFor(cfg.Lang).Failed))

	mux := http.NewServeMux()
	handle.New(sessions, encoder, client, previews, cfg.MaxUploadBytes, log.Named("api")).Register(mux)
	var uiOpts []web.Option
	if cfg.CookieSecure {
		uiOpts = append(uiOpts, web.WithSecureCookie())
	}
	web.New(sessions, encoder, previews, cfg.Lang, cfg.MaxUploadBytes, log.Named("web"), uiOpts...).Register(mux)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.TelegramBotToken != "" {
		if err := startBot(ctx, g, mux, cfg, sessions, encoder, log.Named("telegram")); err != nil {
			return err
		}
	}

	g.Go(func() error {
		return httpserver.Run(ctx, ":"+cfg.Port, mux, log.Named("http"))
	})
	g.Go(func() error {
		return sessions.RunJanitor(ctx, janitorInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// startBot mounts the webhook on mux when WEBHOOK_URL is set, otherwise long-polls.
func startBot(ctx context.Context, g *errgroup.Group, mux *http.ServeMux, cfg *config.Config,
	sessions *session.Manager, encoder *payload.Encoder, log *zap.Logger) error {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	router := telegram.NewRouter(bot, sessions, encoder, cfg.Lang, log)

	if cfg.WebhookURL != "" {
		path := telegram.WebhookPath(bot.Token)
		if err := telegram.SetWebhook(bot, cfg.WebhookURL, path); err != nil {
			return err
		}
		mux.Handle("POST "+path, telegram.WebhookHandler(ctx, router.HandleUpdate, log))
		log.Info("telegram webhook mode", zap.String("bot", bot.Self.UserName))
		return nil
	}

	// polling needs the webhook gone
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Warn("delete webhook failed", zap.Error(err))
	}
	log.Info("telegram polling mode", zap.String("bot", bot.Self.UserName))
	g.Go(func() error {
		return telegram.Poll(ctx, bot, router.HandleUpdate, log)
	})
	return nil
}
