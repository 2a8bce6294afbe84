package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"DATA_FILE", "HTTP_ADDR", "LOG_LEVEL", "ENV", "SENTRY_DSN", "REMOTE_BACKEND",
		"REMOTE_URL", "REMOTE_TOKEN", "DATABASE_URL", "REMOTE_FILE_NAME", "SYNC_INTERVAL", "BOT_TOKEN", "ADMIN_IDS"} {
		t.Setenv(k, "")
	}
	t.Setenv("TZ", "UTC")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataFile != "data/classroom.json" || cfg.HTTPAddr != ":8080" || cfg.RemoteBackend != RemoteNone {
		t.Fatalf("неверные значения по умолчанию: %+v", cfg)
	}
	if cfg.SyncInterval != 0 || cfg.RemoteFileName != "classroom-board.json" || cfg.Location.String() != "UTC" {
		t.Fatalf("неверные значения по умолчанию: %+v", cfg)
	}
}

func TestLoad_HTTPBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMOTE_BACKEND", "HTTP")
	t.Setenv("REMOTE_URL", "https://files.example.com")
	t.Setenv("SYNC_INTERVAL", "90s")
	t.Setenv("ADMIN_IDS", "1, 2,3")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RemoteBackend != RemoteHTTP || cfg.RemoteURL != "https://files.example.com" {
		t.Fatalf("backend: %+v", cfg)
	}
	if cfg.SyncInterval != 90*time.Second {
		t.Fatalf("interval: %v", cfg.SyncInterval)
	}
	if len(cfg.AdminIDs) != 3 || cfg.AdminIDs[2] != 3 {
		t.Fatalf("admin ids: %v", cfg.AdminIDs)
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMOTE_BACKEND", "postgres")
	defer func() {
		if recover() == nil {
			t.Fatal("ожидали панику без DATABASE_URL")
		}
	}()
	_, _ = Load()
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string][2]string{
		"backend":  {"REMOTE_BACKEND", "ftp"},
		"interval": {"SYNC_INTERVAL", "soon"},
		"negative": {"SYNC_INTERVAL", "-1m"},
		"ids":      {"ADMIN_IDS", "1,abc"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("ожидали ошибку для %s=%s", kv[0], kv[1])
			}
		})
	}
}
