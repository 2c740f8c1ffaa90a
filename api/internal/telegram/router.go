// Package telegram is a chat front-end over the same sessions the web page uses.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"exam-ocr/api/internal/payload"
	"exam-ocr/api/internal/session"
	"exam-ocr/api/internal/util"
)

// chunk size under Telegram's 4096-character message cap
const maxMessage = 3900

// Bot is the part of *tgbotapi.BotAPI the router calls.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	bot      Bot
	sessions *session.Manager
	encoder  *payload.Encoder
	texts    Texts
	log      *zap.Logger

	// fetch downloads a Telegram file by direct URL.
	fetch func(ctx context.Context, url string) ([]byte, error)

	batches sync.Map // media group id -> *album
}

func NewRouter(bot Bot, sessions *session.Manager, encoder *payload.Encoder, lang string, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		bot:      bot,
		sessions: sessions,
		encoder:  encoder,
		texts:    TextsFor(lang),
		log:      log,
		fetch:    download,
	}
}

func SessionID(chatID int64) string { return "tg:" + strconv.FormatInt(chatID, 10) }

// session returns the chat's session, hooking result delivery on first use.
func (r *Router) session(chatID int64) *session.Session {
	s, created := r.sessions.Ensure(SessionID(chatID))
	if created {
		s.OnChange(func(s *session.Session) { r.deliver(chatID, s) })
	}
	return s
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	msg := upd.Message
	if msg == nil {
		return
	}
	switch {
	case msg.IsCommand():
		r.HandleCommand(msg)
	case len(msg.Photo) > 0:
		r.acceptPhoto(ctx, msg)
	case msg.Document != nil:
		r.acceptDocument(ctx, msg)
	default:
		r.send(msg.Chat.ID, r.texts.Help)
	}
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start":
		r.send(cid, r.texts.Welcome)
	case "help":
		r.send(cid, r.texts.Help)
	case "reset":
		r.session(cid).Reset()
		r.send(cid, r.texts.Reset)
	default:
		r.send(cid, r.texts.UnknownCommand)
	}
}

// selectImage encodes data and makes it the chat's current image.
func (r *Router) selectImage(ctx context.Context, chatID int64, data []byte, mime, notice string) {
	img, err := r.encoder.Encode(ctx, bytes.NewReader(data), mime)
	if err != nil {
		r.log.Info("image rejected", zap.Int64("chat", chatID), zap.Error(err))
		r.send(chatID, fmt.Sprintf(r.texts.Rejected, err))
		return
	}
	r.session(chatID).SelectImage(img)

	text := r.texts.ImageReceived
	if notice != "" {
		text = notice + "\n" + text
	}
	r.sendWithKeyboard(chatID, text, r.texts.readyKeyboard())
}

// deliver posts a settled extraction to the chat.
func (r *Router) deliver(chatID int64, s *session.Session) {
	v := s.View()
	switch v.Phase {
	case session.PhaseSucceeded:
		chunks := util.SplitText(v.Text, maxMessage)
		r.send(chatID, r.texts.ResultHeader)
		for i, c := range chunks {
			if i == len(chunks)-1 {
				r.sendWithKeyboard(chatID, c, r.texts.resultKeyboard())
				continue
			}
			r.send(chatID, c)
		}
	case session.PhaseFailed:
		r.sendWithKeyboard(chatID, r.texts.ErrorHeader+"\n"+v.Error, r.texts.failedKeyboard())
	}
}

// errText maps a rejected session action to a chat reply.
func (r *Router) errText(err error) string {
	switch {
	case errors.Is(err, session.ErrBusy):
		return r.texts.Busy
	case errors.Is(err, session.ErrNoImage):
		return r.texts.NeedImage
	case errors.Is(err, session.ErrNoResult):
		return r.texts.NoResult
	}
	return r.texts.Help
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (r *Router) sendWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}
