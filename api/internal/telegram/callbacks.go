package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	if _, err := r.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		r.log.Debug("callback ack failed", zap.Error(err))
	}
	s := r.session(cid)

	switch cb.Data {
	case cbExtract, cbRetry:
		start := s.Start
		if cb.Data == cbRetry {
			start = s.Retry
		}
		if err := start(ctx); err != nil {
			r.send(cid, r.errText(err))
			return
		}
		r.dropKeyboard(cid, cb.Message.MessageID)
		r.send(cid, r.texts.Extracting)

	case cbClear:
		if err := s.ClearImage(); err != nil {
			r.send(cid, r.errText(err))
			return
		}
		r.dropKeyboard(cid, cb.Message.MessageID)
		r.send(cid, r.texts.Cleared)

	case cbNew:
		s.Reset()
		r.dropKeyboard(cid, cb.Message.MessageID)
		r.send(cid, r.texts.Reset)

	case cbDownload:
		name, content, err := s.Download()
		if err != nil {
			r.send(cid, r.errText(err))
			return
		}
		doc := tgbotapi.NewDocument(cid, tgbotapi.FileBytes{Name: name, Bytes: []byte(content)})
		if _, err := r.bot.Send(doc); err != nil {
			r.log.Warn("send document failed", zap.Int64("chat", cid), zap.Error(err))
		}
	}
}

func (r *Router) dropKeyboard(chatID int64, msgID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := r.bot.Request(edit); err != nil {
		r.log.Debug("edit markup failed", zap.Error(err))
	}
}
