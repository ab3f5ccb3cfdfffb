package auth

const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// Identity is a verified caller, normalized across identity providers.
type Identity struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider"`
}
