package relay

import (
	"fmt"
	"strings"
)

// Message kinds for direct controller messages.
const (
	KindCommand   = "cmd"
	KindTelemetry = "tel"
	KindRegister  = "reg"
	KindError     = "err"
)

// ValidKind reports whether kind is a recognized direct-message kind.
func ValidKind(kind string) bool {
	switch kind {
	case KindCommand, KindTelemetry, KindRegister, KindError:
		return true
	}
	return false
}

// Topic prefixes for broker-relayed messages. The error kind has no broker
// topic; device errors travel over the direct transports.
const (
	PrefixCommand   = "cmd"
	PrefixTelemetry = "tel"
	PrefixRegister  = "reg"
)

// InvalidTopicError rejects a broker topic whose prefix is not recognized.
type InvalidTopicError struct {
	Topic string
}

func (e *InvalidTopicError) Error() string {
	return fmt.Sprintf("invalid topic: %s", e.Topic)
}

// ParseTopic decomposes a broker topic into its recognized prefix and the
// free-form suffix context, e.g. "tel/zone-1/bme280" -> ("tel",
// "zone-1/bme280").
func ParseTopic(topic string) (prefix, suffix string, err error) {
	prefix, suffix, _ = strings.Cut(topic, "/")
	switch prefix {
	case PrefixCommand, PrefixTelemetry, PrefixRegister:
		return prefix, suffix, nil
	}
	return "", "", &InvalidTopicError{Topic: topic}
}
