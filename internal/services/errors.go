package services

import "errors"

// Service-level errors. Handlers map these onto the HTTP error envelope;
// everything else propagates wrapped and unmodified.
var (
	ErrParcelNotFound   = errors.New("parcel not found")
	ErrOwnerNotFound    = errors.New("owner not found")
	ErrIntervalNotFound = errors.New("ownership interval not found")
	ErrDueNotFound      = errors.New("due record not found")
	ErrTemplateNotFound = errors.New("notification template not found")

	// ErrInvalidInterval rejects a transfer whose start date precedes the
	// current open interval's start.
	ErrInvalidInterval = errors.New("invalid ownership interval")

	// ErrOverlapViolation rejects a correction that would make the parcel's
	// intervals overlap or leave more than one of them open.
	ErrOverlapViolation = errors.New("ownership intervals would overlap")

	// ErrAlreadyAssessed rejects a second assessment for the same parcel
	// and fiscal year.
	ErrAlreadyAssessed = errors.New("due already assessed for this year")

	// ErrNotAssessed is the explicit "no due record" answer of StatusOf.
	ErrNotAssessed = errors.New("no due assessed for this year")

	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidInput rejects malformed identity fields (blank plot number,
	// blank owner name).
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoOwner is the valid "parcel has no owner at this date" state.
	ErrNoOwner = errors.New("parcel has no owner")

	// ErrMissingPlaceholder is returned when a template references one of
	// the reserved placeholders but the substitution set has no value for it.
	ErrMissingPlaceholder = errors.New("template placeholder has no value")

	// ErrParcelReferenced blocks hard deletion while ownership intervals or
	// due records still reference the parcel.
	ErrParcelReferenced = errors.New("parcel is referenced by intervals or dues")

	// ErrConflict surfaces a lost optimistic write from the store; the
	// caller saw stale state and should retry.
	ErrConflict = errors.New("concurrent modification")
)
