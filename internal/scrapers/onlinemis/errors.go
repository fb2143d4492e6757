package onlinemis

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is matched by every *SessionExpiredError with errors.Is.
var ErrSessionExpired = errors.New("upstream session expired")

// TransportError is a network failure talking to CAS or the portal.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %s", e.Op, e.Err.Error())
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CredentialsError is an authentication failure reported by CAS, Message is
// the text of the CAS error banner and is safe to show to the user.
type CredentialsError struct {
	Message string
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("credentials rejected: %s", e.Message)
}

// ProtocolPreconditionError means CAS did not hand out an artifact the login
// flow depends on (login ticket, transient session cookie, portal cookie).
type ProtocolPreconditionError struct {
	Missing string
}

func (e *ProtocolPreconditionError) Error() string {
	return fmt.Sprintf("cas protocol precondition: missing %s", e.Missing)
}

// SessionExpiredError is returned when the validator classifies a fetched
// page as coming from a dead upstream session. The caller must log in again.
type SessionExpiredError struct {
	Resource Resource
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("%s: %s", e.Resource, ErrSessionExpired.Error())
}

func (e *SessionExpiredError) Is(target error) bool {
	return target == ErrSessionExpired
}

// SchemaDriftError is returned when a structural anchor of a page template
// matched nothing.
type SchemaDriftError struct {
	Resource Resource
	Field    string
	Selector string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf(
		"%s: schema drift: anchor for '%s' matched nothing (%s)",
		e.Resource, e.Field, e.Selector,
	)
}

// FieldParseError is returned when a located field holds text that cannot be
// coerced to its expected type.
type FieldParseError struct {
	Resource Resource
	Field    string
	Value    string
	Err      error
}

func (e *FieldParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: parse '%s': unexpected value %q", e.Resource, e.Field, e.Value)
	}
	return fmt.Sprintf("%s: parse '%s': unexpected value %q: %s", e.Resource, e.Field, e.Value, e.Err.Error())
}

func (e *FieldParseError) Unwrap() error {
	return e.Err
}

// UpstreamRejectedError is returned by logbook writes when the portal
// answered with a page that does not confirm the write. Message is the
// portal's own banner text, empty when it showed none.
type UpstreamRejectedError struct {
	Resource Resource
	Message  string
}

func (e *UpstreamRejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: rejected by portal", e.Resource)
	}
	return fmt.Sprintf("%s: rejected by portal: %s", e.Resource, e.Message)
}
