// Package notify — служебные уведомления администраторам (сейчас через Telegram).
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/classroom-board/internal/observability"
)

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop — уведомления выключены (нет BOT_TOKEN или ADMIN_IDS).
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot     sender
	chatIDs []int64
	log     *zap.Logger
}

// New возвращает Telegram-уведомитель или Nop, если слать некуда.
func New(token string, chatIDs []int64, log *zap.Logger) (Notifier, error) {
	if strings.TrimSpace(token) == "" || len(chatIDs) == 0 {
		return Nop{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return newTelegram(bot, chatIDs, log), nil
}

func newTelegram(bot sender, chatIDs []int64, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{bot: bot, chatIDs: append([]int64(nil), chatIDs...), log: log}
}

// Notify шлёт текст всем админам; ошибка по одному чату не мешает остальным.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, id := range t.chatIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, err := t.bot.Send(tgbotapi.NewMessage(id, text))
		if err == nil {
			continue
		}
		if isSystemErr(err) {
			observability.CaptureErrCtx(ctx, err)
		}
		t.log.Warn("telegram: сообщение не отправлено", zap.Int64("chat_id", id), zap.Error(err))
		errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
	}
	return errors.Join(errs...)
}

// Считаем системными: 5xx, 429, timeout. 400-ки и типичные телеграм-валидации в Sentry не шлём.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	for _, marker := range []string{"429", "500", "502", "503", "504", "timeout"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
