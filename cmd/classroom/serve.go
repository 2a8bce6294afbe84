package main

import (
	"context"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Spok95/classroom-board/internal/app"
	"github.com/Spok95/classroom-board/internal/jobs"
	"github.com/Spok95/classroom-board/internal/notify"
)

func (e *env) serve(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	addr := fs.String("addr", e.cfg.HTTPAddr, "адрес HTTP API")
	interval := fs.Duration("sync-interval", e.cfg.SyncInterval, "период автосинхронизации, 0 — выключена")
	if err := fs.Parse(args); err != nil {
		return err
	}
	log := e.log.Base

	svc, err := e.openService()
	if err != nil {
		return err
	}
	syncer, pinger, closer, err := e.remote(ctx)
	if err != nil {
		return err
	}
	defer closer()

	serial := app.NewSerializer()
	runner := jobs.New(ctx, e.log.Named("jobs"))

	if syncer != nil && *interval > 0 {
		notifier, err := notify.New(e.cfg.BotToken, e.cfg.AdminIDs, e.log.Named("notify"))
		if err != nil {
			log.Warn("telegram notifier disabled", zap.Error(err))
			notifier = notify.Nop{}
		}
		snapshot := func(context.Context) (payload []byte, err error) {
			err = serial.Do(func() error {
				payload, err = svc.Snapshot()
				return err
			})
			return payload, err
		}
		auto := jobs.NewAutoSync(snapshot, syncer, notifier, e.log.Named("autosync"))
		runner.Every(*interval, jobs.AutoSyncName, auto.Run)
	}

	app.StartHTTP(ctx, *addr, app.Deps{
		Service:  svc,
		Serial:   serial,
		Syncer:   syncer,
		Remote:   pinger,
		Location: e.cfg.Location,
		Log:      e.log.Named("http"),
	})
	log.Info("classroom-board started",
		zap.String("addr", *addr),
		zap.String("data_file", e.cfg.DataFile),
		zap.String("remote", e.cfg.RemoteBackend),
		zap.Duration("sync_interval", *interval),
	)

	<-ctx.Done()
	log.Info("shutting down")
	runner.Wait()
	// последняя выгрузка перед выходом, если облако настроено
	if syncer != nil {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var payload []byte
		err := serial.Do(func() (err error) {
			payload, err = svc.Snapshot()
			return err
		})
		if err == nil {
			_, err = syncer.Push(pushCtx, payload)
		}
		if err != nil {
			log.Warn("final push failed", zap.Error(err))
		}
	}
	return nil
}
