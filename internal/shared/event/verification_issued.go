package event

const VerificationIssuedDestination string = "verification.issued"

// VerificationIssuedMessage never carries the code itself.
type VerificationIssuedMessage struct {
	UserID      string `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
	ExpiresAt   int64  `json:"expires_at"`
}
