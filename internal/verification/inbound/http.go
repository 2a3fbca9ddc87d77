package inbound

import (
	"context"

	"github.com/shandysiswandi/smsotp/internal/pkg/router"
	"github.com/shandysiswandi/smsotp/internal/verification/usecase"
)

type uc interface {
	IssueCode(ctx context.Context, in usecase.IssueCodeInput) (*usecase.IssueCodeOutput, error)
	VerifyCode(ctx context.Context, in usecase.VerifyCodeInput) (*usecase.VerifyCodeOutput, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/api/v1/verification/send", end.SendCode)
	r.POST("/api/v1/verification/verify", end.VerifyCode)

	// paths used by existing mobile clients
	r.POST("/api/send-2fa-code", end.SendCode)
	r.POST("/api/verify-2fa-code", end.VerifyCode)
}
