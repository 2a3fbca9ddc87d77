package inbound

type SendCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	UserID      string `json:"userId"`
}

type SendCodeResponse struct {
	ExpiresIn int `json:"expires_in" example:"300"`
}

func (SendCodeResponse) Message() string {
	return "Verification code sent successfully"
}

type VerifyCodeRequest struct {
	Code   string `json:"code"`
	UserID string `json:"userId"`
}

type VerifyCodeResponse struct {
	PhoneNumber string `json:"phone_number" example:"233551234567"`
}

func (VerifyCodeResponse) Message() string {
	return "Code verified successfully"
}
