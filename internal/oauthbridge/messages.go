package oauthbridge

// Message types posted from the popup callback page to the opener window.
// The payload is a discriminated union keyed by Type; payloads the callback
// cannot classify degrade to the generic "oauth:callback" error form.
const (
	TypeAuthSuccess = "GBP_AUTH_SUCCESS"
	TypeAuthError   = "GBP_AUTH_ERROR"
	TypeGeneric     = "oauth:callback"
)

// Message is the typed payload delivered to the opener via postMessage.
type Message struct {
	Type     string `json:"type"`
	Provider string `json:"provider,omitempty"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SuccessMessage builds the payload for a completed Google connection.
func SuccessMessage() Message {
	return Message{Type: TypeAuthSuccess, Provider: "google"}
}

// ErrorMessage builds the payload for a failed connection attempt.
func ErrorMessage(reason string) Message {
	return Message{Type: TypeAuthError, Provider: "google", Error: reason}
}

// GenericMessage builds the degraded payload for callbacks that carry
// parameters the page cannot classify.
func GenericMessage(reason string) Message {
	return Message{Type: TypeGeneric, Provider: "google", Status: "error", Error: reason}
}
