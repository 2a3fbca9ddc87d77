package inbound

import (
	"github.com/shandysiswandi/smsotp/internal/pkg/router"
	"github.com/shandysiswandi/smsotp/internal/verification/usecase"
)

// HTTPEndpoint exposes the phone verification handlers.
type HTTPEndpoint struct {
	uc uc
}

// SendCode issues a code for the user and delivers it by SMS.
// @Summary Send verification code
// @Description Generates a 6-digit code, stores it for 5 minutes and sends it to the phone number. Any pending code for the user is replaced.
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body SendCodeRequest true "Send code payload"
// @Success 200 {object} router.successResponse{data=SendCodeResponse} "Code sent"
// @Failure 400 {object} router.errorResponse "Invalid request body or phone number"
// @Failure 405 {object} router.errorResponse "Method not allowed"
// @Failure 429 {object} router.errorResponse "Another request for this user is in progress"
// @Failure 500 {object} router.errorResponse "SMS service not configured or failed to send SMS"
// @Router /api/v1/verification/send [post]
func (h *HTTPEndpoint) SendCode(r *router.Request) (any, error) {
	var req SendCodeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.IssueCode(r.Context(), usecase.IssueCodeInput{
		UserID:      req.UserID,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}

	return SendCodeResponse{ExpiresIn: resp.ExpiresIn}, nil
}

// VerifyCode checks a code and consumes it on success.
// @Summary Verify code
// @Description Compares the supplied code with the pending one. Three wrong codes invalidate it.
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body VerifyCodeRequest true "Verify code payload"
// @Success 200 {object} router.successResponse{data=VerifyCodeResponse} "Code verified"
// @Failure 400 {object} router.errorResponse "No code, expired code, incorrect code or too many attempts"
// @Failure 405 {object} router.errorResponse "Method not allowed"
// @Failure 429 {object} router.errorResponse "Another request for this user is in progress"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/verification/verify [post]
func (h *HTTPEndpoint) VerifyCode(r *router.Request) (any, error) {
	var req VerifyCodeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyCode(r.Context(), usecase.VerifyCodeInput{
		UserID: req.UserID,
		Code:   req.Code,
	})
	if err != nil {
		return nil, err
	}

	return VerifyCodeResponse{PhoneNumber: resp.PhoneNumber}, nil
}
