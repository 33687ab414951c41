package models

// OutcomeResult is produced by every classification step of the flow.
// Error is an application-level failure reported by the page, not a
// transport or wait failure.
type OutcomeResult struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// Success returns a non-error outcome carrying message
func Success(message string) OutcomeResult {
	return OutcomeResult{Message: message}
}

// Failure returns an error outcome carrying message
func Failure(message string) OutcomeResult {
	return OutcomeResult{Error: true, Message: message}
}
