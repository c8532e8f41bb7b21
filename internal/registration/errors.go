package registration

import "fmt"

// UnauthenticatedPingError rejects an anonymous ping of a device that has
// already been claimed. It carries the canonical resource URL the device
// must use over an authenticated channel instead.
type UnauthenticatedPingError struct {
	URL string
}

func (e *UnauthenticatedPingError) Error() string {
	return fmt.Sprintf("unauthenticated ping of registered device. Use %s", e.URL)
}

// ValidationError is a field-level protocol validation failure. The request
// is rejected with state unchanged; nothing is partially committed.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}
