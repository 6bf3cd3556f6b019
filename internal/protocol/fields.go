package protocol

// Reserved field names. Everything else on an inbound frame is owned by the
// automation logic and passes through untouched.
const (
	FieldAPIKey    = "api_key"
	FieldText      = "text"
	FieldImage     = "image"
	FieldTimestamp = "timestamp"
	FieldError     = "error"
)

// RejectionMessage is the exact error text written back on a failed key check.
const RejectionMessage = "Invalid API key."

// RejectionFrame returns the single frame sent to a sender whose api_key was
// missing or wrong. The connection itself stays open.
func RejectionFrame() map[string]any {
	return map[string]any{FieldError: RejectionMessage}
}
