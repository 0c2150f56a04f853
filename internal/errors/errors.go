// Package errors defines the client-visible error vocabulary. Every business
// rejection carries a stable machine-readable code and a bilingual message;
// raw database errors never cross this boundary.
package errors

import "fmt"

// DomainError is a typed business error with a stable tag and messages in
// English and Swahili.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	MessageSw string `json:"message_sw"`
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches DomainErrors by code so errors.Is works across copies.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}
