package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Spok95/classroom-board/internal/metrics"
)

// RemoteFiles — облачное хранилище документа в таблице remote_files.
type RemoteFiles struct {
	db *sql.DB
}

func NewRemoteFiles(database *sql.DB) *RemoteFiles {
	return &RemoteFiles{db: database}
}

// LoadRemoteFile возвращает (nil, nil), если файла нет.
func (r *RemoteFiles) LoadRemoteFile(ctx context.Context, name string) (json.RawMessage, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM remote_files WHERE name = $1`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(payload), nil
}

func (r *RemoteFiles) SaveRemoteFile(ctx context.Context, name string, payload json.RawMessage) error {
	sum := blake3.Sum256(payload)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO remote_files (name, payload, hash, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET payload = EXCLUDED.payload, hash = EXCLUDED.hash, updated_at = now()
		WHERE remote_files.hash <> EXCLUDED.hash`,
		name, string(payload), hex.EncodeToString(sum[:]),
	)
	return err
}

// UpdatedAt отдаёт время последней выгрузки; ok=false, если файла нет.
func (r *RemoteFiles) UpdatedAt(ctx context.Context, name string) (time.Time, bool, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx, `SELECT updated_at FROM remote_files WHERE name = $1`, name).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// Ping — для /healthz; латентность уходит в метрики.
func (r *RemoteFiles) Ping(ctx context.Context) error {
	start := time.Now()
	err := r.db.PingContext(ctx)
	metrics.ObserveRemotePing(time.Since(start))
	return err
}
