package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Spok95/classroom-board/internal/app"
	"github.com/Spok95/classroom-board/internal/config"
	"github.com/Spok95/classroom-board/internal/db"
	"github.com/Spok95/classroom-board/internal/logging"
	"github.com/Spok95/classroom-board/internal/observability"
	"github.com/Spok95/classroom-board/internal/remotesync"
	"github.com/Spok95/classroom-board/internal/roster"
	"github.com/Spok95/classroom-board/internal/store"
)

var version = "dev"

const usage = `classroom-board — журнал баллов класса

Команды:
  serve              HTTP API и автосинхронизация (по умолчанию)
  migrate-history    перенести старую историю списаний в журнал
  export             выгрузить историю ученика в xlsx
  sync push|pull     разовая синхронизация с облаком
  remote-migrate     применить миграции к DATABASE_URL
`

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Не удалось загрузить .env файл, используем переменные окружения")
	}
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}
	if cmd == "help" {
		fmt.Print(usage)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer lg.Closer()

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, version)
	if err != nil {
		lg.Base.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := &env{cfg: cfg, log: lg}
	err = e.dispatch(ctx, cmd, args)
	observability.CaptureErr(err)
	return err
}

func (e *env) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "serve":
		return e.serve(ctx, args)
	case "migrate-history":
		return e.migrateHistory()
	case "export":
		return e.export(args)
	case "sync":
		return e.sync(ctx, args)
	case "remote-migrate":
		return e.remoteMigrate(ctx)
	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type env struct {
	cfg *config.Config
	log *logging.Log
}

func (e *env) openService() (*roster.Service, error) {
	st := store.New(store.FileBackend{Path: e.cfg.DataFile}, e.log.Named("store"))
	svc := roster.New(st, e.log.Named("roster"))
	if err := svc.Open(); err != nil {
		return nil, fmt.Errorf("open %s: %w", e.cfg.DataFile, err)
	}
	return svc, nil
}

// remote собирает синхронизацию по REMOTE_BACKEND. Для none возвращает nil.
func (e *env) remote(ctx context.Context) (*remotesync.Syncer, app.Pinger, func(), error) {
	log := e.log.Named("sync")
	switch e.cfg.RemoteBackend {
	case config.RemoteHTTP:
		files := remotesync.NewHTTPFiles(e.cfg.RemoteURL, remotesync.StaticToken(e.cfg.RemoteToken))
		return remotesync.NewSyncer(files, remotesync.StaticToken(e.cfg.RemoteToken), e.cfg.RemoteFileName, log), nil, func() {}, nil
	case config.RemotePostgres:
		database, err := e.openDB(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		files := db.NewRemoteFiles(database)
		closer := func() { _ = database.Close() }
		return remotesync.NewSyncer(files, remotesync.NoAuth{}, e.cfg.RemoteFileName, log), files, closer, nil
	}
	return nil, nil, func() {}, nil
}

func (e *env) openDB(ctx context.Context) (*sql.DB, error) {
	if e.cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	database, err := db.Open(ctx, e.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.Migrate(ctx, database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return database, nil
}

func (e *env) remoteMigrate(ctx context.Context) error {
	database, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()
	e.log.Base.Info("remote migrations applied")
	return nil
}

func (e *env) migrateHistory() error {
	// Open уже переносит историю; повторный вызов ничего не создаёт.
	svc, err := e.openService()
	if err != nil {
		return err
	}
	created := svc.MigrateLegacyHistory()
	fmt.Printf("events: %d, migrated now: %d\n", svc.Ledger().Len(), len(created))
	return nil
}

func (e *env) sync(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || (fs.Arg(0) != "push" && fs.Arg(0) != "pull") {
		return errors.New("usage: sync push|pull")
	}

	syncer, _, closer, err := e.remote(ctx)
	if err != nil {
		return err
	}
	defer closer()
	if syncer == nil {
		return errors.New("REMOTE_BACKEND=none: sync disabled")
	}
	svc, err := e.openService()
	if err != nil {
		return err
	}

	if fs.Arg(0) == "push" {
		payload, err := svc.Snapshot()
		if err != nil {
			return err
		}
		pushed, err := syncer.Push(ctx, payload)
		if err != nil {
			return err
		}
		fmt.Printf("pushed: %t\n", pushed)
		return nil
	}

	doc, err := syncer.Pull(ctx)
	if err != nil {
		return err
	}
	if doc == nil {
		fmt.Printf("remote file %s not found\n", syncer.FileName())
		return nil
	}
	svc.Replace(doc)
	fmt.Printf("pulled: %d classes, %d events\n", doc.ClassesByName.Len(), len(doc.ScoreEvents))
	return nil
}
