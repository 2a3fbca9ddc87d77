// Package app wires the service together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/smsotp/internal/pkg/clock"
	"github.com/shandysiswandi/smsotp/internal/pkg/config"
	"github.com/shandysiswandi/smsotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/smsotp/internal/pkg/instrument"
	"github.com/shandysiswandi/smsotp/internal/pkg/messaging"
	"github.com/shandysiswandi/smsotp/internal/pkg/otp"
	"github.com/shandysiswandi/smsotp/internal/pkg/router"
	"github.com/shandysiswandi/smsotp/internal/pkg/sms"
	"github.com/shandysiswandi/smsotp/internal/pkg/uid"
	"github.com/shandysiswandi/smsotp/internal/pkg/validator"
)

type closer struct {
	name string
	fn   func(context.Context) error
}

// App holds every long lived dependency of the service.
type App struct {
	config config.Config
	ins    instrument.Instrumentation

	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	uuid      uid.StringID
	otp       otp.Generator

	// nil unless a selected driver needs them
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client

	messaging messaging.Messaging
	sms       sms.SMS

	router     *router.Router
	httpServer *http.Server

	// run in reverse order of registration on Stop
	closers []closer
}

// New builds the application from the file at CONFIG_PATH. On error every
// resource opened so far is closed again.
func New(ctx context.Context) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			a.close(context.WithoutCancel(ctx))
		}
	}()

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"config", a.initConfig},
		{"instrument", a.initInstrument},
		{"libraries", a.initLibraries},
		{"database", a.initDatabase},
		{"cache", a.initCache},
		{"messaging", a.initMessaging},
		{"sms", a.initSMS},
		{"http server", a.initHTTPServer},
		{"modules", a.initModules},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return nil, fmt.Errorf("init %s: %w", step.name, err)
		}
	}

	return a, nil
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "failed to close resource", "name", c.name, "error", err)
		}
	}
	a.closers = nil
}
