package event

const PhoneVerifiedDestination string = "phone.verified"

type PhoneVerifiedMessage struct {
	UserID      string `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
	VerifiedAt  int64  `json:"verified_at"`
}
