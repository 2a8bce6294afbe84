package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/classroom-board/internal/ctxutil"
	"github.com/Spok95/classroom-board/internal/observability"
)

type Job func(ctx context.Context) error

type Runner struct {
	ctx context.Context
	log *zap.Logger
	wg  sync.WaitGroup
}

func New(ctx context.Context, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{ctx: ctx, log: log}
}

// Every запускает fn раз в interval до отмены контекста раннера.
func (r *Runner) Every(interval time.Duration, name string, fn Job) {
	if interval <= 0 {
		r.log.Info("фоновая задача отключена", zap.String("job", name))
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.C:
				_ = r.RunOnce(name, fn)
			}
		}
	}()
}

// RunOnce делает один прогон с метриками; паника превращается в ошибку.
func (r *Runner) RunOnce(name string, fn Job) (err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			jobPanics.WithLabelValues(name).Inc()
			err = fmt.Errorf("panic in job %s: %v", name, rec)
		}
		if err != nil {
			jobErrors.WithLabelValues(name).Inc()
			r.log.Warn("фоновая задача завершилась с ошибкой", zap.String("job", name), zap.Error(err))
			observability.CaptureErrCtx(ctxutil.WithOp(r.ctx, name), err)
		}
		jobRuns.WithLabelValues(name).Inc()
		jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()
	return fn(r.ctx)
}

// Wait ждёт завершения всех циклов после отмены контекста.
func (r *Runner) Wait() { r.wg.Wait() }
