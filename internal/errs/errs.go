// Package errs defines the error taxonomy shared by the core services.
// Services return these instead of raising free-form errors across package
// boundaries; the gateway layer is the single place that turns them into
// user-visible text.
package errs

import "errors"

// Validation marks a malformed or unresolvable request argument. No state
// was changed.
type Validation struct {
	Msg string
}

func (e *Validation) Error() string { return e.Msg }

func IsValidation(err error) bool {
	var v *Validation
	return errors.As(err, &v)
}

// NotFound marks a lookup miss for an entity named by the caller.
type NotFound struct {
	What string
}

func (e *NotFound) Error() string { return e.What + " not found" }

func IsNotFound(err error) bool {
	var v *NotFound
	return errors.As(err, &v)
}

// Conflict marks a lost race on binding creation. The operation was rolled
// back; the caller releases the partner and retries or re-enters a waiting
// state.
type Conflict struct {
	Msg string
}

func (e *Conflict) Error() string {
	if e.Msg == "" {
		return "conflicting binding"
	}
	return e.Msg
}

func IsConflict(err error) bool {
	var v *Conflict
	return errors.As(err, &v)
}

// PartnerGone marks a failed delivery to the room partner. The caller's
// side of the binding is torn down; the partner's side is reconciled later.
type PartnerGone struct{}

func (e *PartnerGone) Error() string { return "partner gone" }

func IsPartnerGone(err error) bool {
	var v *PartnerGone
	return errors.As(err, &v)
}

// Unauthorized marks an admin operation attempted by a non-admin identity.
type Unauthorized struct{}

func (e *Unauthorized) Error() string { return "unauthorized" }

func IsUnauthorized(err error) bool {
	var v *Unauthorized
	return errors.As(err, &v)
}

// Transient wraps a store timeout or a gateway hiccup: safe to retry where
// idempotent, otherwise surfaced as a soft failure.
type Transient struct {
	Msg   string
	Cause error
}

func (e *Transient) Error() string {
	if e.Cause == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Cause.Error()
}

func (e *Transient) Unwrap() error { return e.Cause }

func IsTransient(err error) bool {
	var v *Transient
	return errors.As(err, &v)
}
