package discovery

import (
	"fmt"
	"reflect"
)

// DiscoveryError reports a subscriber type with no eligible handler on
// itself or any embedded type.
type DiscoveryError struct {
	// SubscriberType is the type passed to Find.
	SubscriberType reflect.Type
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("subscriber %s and its embedded types have no exported On* handler methods", e.SubscriberType)
}

// SignatureError reports a marked handler with the wrong shape, or a
// Config entry naming no handler. Only returned under strict verification.
type SignatureError struct {
	// DeclaringType is the type whose method set was being inspected.
	DeclaringType reflect.Type
	// Method is the offending method or Config key.
	Method string
	// Reason describes the violated rule.
	Reason string
}

// Error implements the error interface.
func (e *SignatureError) Error() string {
	return fmt.Sprintf("handler %s.%s: %s", e.DeclaringType, e.Method, e.Reason)
}
