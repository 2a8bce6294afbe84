package jobs

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Spok95/classroom-board/internal/remotesync"
)

const AutoSyncName = "autosync"

type Pusher interface {
	Push(ctx context.Context, payload []byte) (bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// AutoSync периодически выгружает снимок документа. При истёкшем токене
// администратор получает одно сообщение, до следующей успешной выгрузки.
type AutoSync struct {
	snapshot func(ctx context.Context) ([]byte, error)
	push     Pusher
	notify   Notifier
	log      *zap.Logger

	mu      sync.Mutex
	alerted bool
}

func NewAutoSync(snapshot func(ctx context.Context) ([]byte, error), push Pusher, notify Notifier, log *zap.Logger) *AutoSync {
	if log == nil {
		log = zap.NewNop()
	}
	return &AutoSync{snapshot: snapshot, push: push, notify: notify, log: log}
}

func (a *AutoSync) Run(ctx context.Context) error {
	payload, err := a.snapshot(ctx)
	if err != nil {
		return err
	}
	pushed, err := a.push.Push(ctx, payload)
	switch {
	case errors.Is(err, remotesync.ErrNotSignedIn):
		return nil
	case remotesync.IsAuthExpired(err):
		a.alertOnce(ctx)
		return err
	case err != nil:
		return err
	}

	a.mu.Lock()
	a.alerted = false
	a.mu.Unlock()
	if pushed {
		a.log.Info("автосинхронизация: документ выгружен", zap.Int("bytes", len(payload)))
	}
	return nil
}

func (a *AutoSync) alertOnce(ctx context.Context) {
	a.mu.Lock()
	if a.alerted {
		a.mu.Unlock()
		return
	}
	a.alerted = true
	a.mu.Unlock()

	syncAlerts.Inc()
	if a.notify == nil {
		return
	}
	if err := a.notify.Notify(ctx, "⚠️ Облачная синхронизация остановлена: токен истёк, войдите заново."); err != nil {
		a.log.Warn("не удалось отправить уведомление", zap.Error(err))
	}
}
