// Package remotesync — выгрузка/загрузка документа в облачное хранилище.
// Ядро про сеть не знает: сюда приходит готовый JSON, отсюда уходит починенный документ.
package remotesync

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrAuthExpired — хранилище отвергло токен; нужен повторный вход.
	ErrAuthExpired = errors.New("remote auth expired")
	ErrNotSignedIn = errors.New("remote: not signed in")
)

// IsAuthExpired сообщает, что ошибка требует повторного входа.
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}

// RemoteFiles — облачное хранилище именованных JSON-файлов.
// LoadRemoteFile возвращает (nil, nil), если файла нет.
type RemoteFiles interface {
	LoadRemoteFile(ctx context.Context, name string) (json.RawMessage, error)
	SaveRemoteFile(ctx context.Context, name string, payload json.RawMessage) error
}

type Auth interface {
	IsSignedIn() bool
	Token() (string, bool)
}

// StaticToken берёт токен из конфигурации.
type StaticToken string

func (t StaticToken) IsSignedIn() bool { return strings.TrimSpace(string(t)) != "" }

func (t StaticToken) Token() (string, bool) {
	v := strings.TrimSpace(string(t))
	return v, v != ""
}

// NoAuth — для хранилищ, которым токен не нужен (Postgres).
type NoAuth struct{}

func (NoAuth) IsSignedIn() bool       { return true }
func (NoAuth) Token() (string, bool) { return "", true }
