package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Куда выгружается документ.
const (
	RemoteNone     = "none"
	RemoteHTTP     = "http"
	RemotePostgres = "postgres"
)

type Config struct {
	DataFile  string
	Location  *time.Location
	HTTPAddr  string
	LogLevel  string
	Env       string // dev|prod
	SentryDSN string

	RemoteBackend  string // none|http|postgres
	RemoteURL      string
	RemoteToken    string
	DatabaseURL    string
	RemoteFileName string
	SyncInterval   time.Duration // 0 — автосинхронизация выключена

	// Оповещения администраторам в Telegram (истёк токен облака).
	BotToken string
	AdminIDs []int64
}

func Load() (*Config, error) {
	tz := getenv("TZ", "Asia/Taipei")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	adminIDs, err := parseIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS: %w", err)
	}

	interval, err := parseInterval(os.Getenv("SYNC_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("SYNC_INTERVAL: %w", err)
	}

	cfg := &Config{
		DataFile:       getenv("DATA_FILE", "data/classroom.json"),
		Location:       loc,
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		Env:            getenv("ENV", "dev"),
		SentryDSN:      os.Getenv("SENTRY_DSN"),
		RemoteBackend:  strings.ToLower(getenv("REMOTE_BACKEND", RemoteNone)),
		RemoteToken:    os.Getenv("REMOTE_TOKEN"),
		RemoteFileName: getenv("REMOTE_FILE_NAME", "classroom-board.json"),
		SyncInterval:   interval,
		BotToken:       os.Getenv("BOT_TOKEN"),
		AdminIDs:       adminIDs,
	}

	switch cfg.RemoteBackend {
	case RemoteNone:
	case RemoteHTTP:
		cfg.RemoteURL = mustEnv("REMOTE_URL")
	case RemotePostgres:
		cfg.DatabaseURL = mustEnv("DATABASE_URL")
	default:
		return nil, fmt.Errorf("REMOTE_BACKEND: unknown backend %q", cfg.RemoteBackend)
	}
	return cfg, nil
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// parseInterval: "" и "0" выключают автосинхронизацию.
func parseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative interval %s", s)
	}
	return d, nil
}

func parseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
