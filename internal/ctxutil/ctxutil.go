package ctxutil

import (
	"context"
	"time"
)

// приватные ключи, чтобы исключить коллизии
type key int

const (
	keyClassName key = iota
	keyOpName
)

// WithClassName /ClassName — класс, над которым идёт операция
func WithClassName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyClassName, name)
}

func ClassName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyClassName).(string)
	return v, ok
}

// WithOp /Op — имя операции (для логов/Sentry)
func WithOp(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyOpName, name)
}

func Op(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyOpName).(string)
	return v, ok
}

// Таймаут на один запрос к удалённому хранилищу.
var (
	DefaultRemoteTimeout = 15 * time.Second
)

// WithTimeout — удобная обёртка над context.WithTimeout.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// WithRemoteTimeout ставит стандартный таймаут облачной синхронизации.
func WithRemoteTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := parent.Deadline(); ok {
		// если у родителя осталось меньше — берём остаток
		remain := time.Until(dl)
		if remain < DefaultRemoteTimeout {
			return context.WithTimeout(parent, remain)
		}
	}
	return context.WithTimeout(parent, DefaultRemoteTimeout)
}
