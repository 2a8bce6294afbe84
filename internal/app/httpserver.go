package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Spok95/classroom-board/internal/metrics"
	"github.com/Spok95/classroom-board/internal/remotesync"
	"github.com/Spok95/classroom-board/internal/roster"
)

// Pinger — удалённое хранилище, которое умеет проверять связь (Postgres).
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Service  *roster.Service
	Serial   *Serializer
	Syncer   *remotesync.Syncer // nil — синхронизация выключена
	Remote   Pinger             // nil — /healthz не проверяет хранилище
	Location *time.Location
	Log      *zap.Logger
}

type HTTPServer struct {
	srv *http.Server
}

// NewHandler собирает echo-приложение: /healthz, /metrics и JSON API.
func NewHandler(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Serial == nil {
		d.Serial = NewSerializer()
	}
	if d.Location == nil {
		d.Location = time.Local
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{DisablePrintStack: true}))
	e.HTTPErrorHandler = httpErrorHandler(d.Log)

	e.GET("/healthz", func(c echo.Context) error {
		if d.Remote == nil {
			return c.String(http.StatusOK, "ok")
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 800*time.Millisecond)
		defer cancel()
		if err := d.Remote.Ping(ctx); err != nil {
			return c.String(http.StatusServiceUnavailable, "remote not ok: "+err.Error())
		}
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	registerAPI(e.Group("/api"), &api{
		svc:    d.Service,
		serial: d.Serial,
		syncer: d.Syncer,
		loc:    d.Location,
		log:    d.Log,
	})
	return e
}

func StartHTTP(ctx context.Context, addr string, d Deps) *HTTPServer {
	srv := &http.Server{Addr: addr, Handler: NewHandler(d), ReadHeaderTimeout: 5 * time.Second}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	return &HTTPServer{srv: srv}
}
