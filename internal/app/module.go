package app

import (
	"context"

	"github.com/shandysiswandi/smsotp/internal/verification"
)

func (a *App) initModules(context.Context) error {
	dep := verification.Dependency{
		DBConn:     a.dbConn,
		Goroutine:  a.goroutine,
		Router:     a.router,
		Messaging:  a.messaging,
		SMS:        a.sms,
		Config:     a.config,
		Instrument: a.ins,
		UUID:       a.uuid,
		Clock:      a.clock,
		OTP:        a.otp,
		Validator:  a.validator,
	}
	// a nil *redis.Client must not become a non-nil interface
	if a.cacheConn != nil {
		dep.CacheConn = a.cacheConn
	}

	return verification.New(dep)
}
