// Package apierr holds the error taxonomy of spec §7, shared by every layer
// so that internal sentinels survive wrapping up to the external interface
// without being restringified along the way.
package apierr

import "errors"

var (
	ErrBadInput       = errors.New("BAD_INPUT")
	ErrBadCard        = errors.New("BAD_CARD")
	ErrBadRules       = errors.New("BAD_RULES")
	ErrWrongMode      = errors.New("WRONG_MODE")
	ErrWrongState     = errors.New("WRONG_STATE")
	ErrIllegalAction  = errors.New("ILLEGAL_ACTION")
	ErrShoeExhausted  = errors.New("SHOE_EXHAUSTED")
	ErrSessionGone    = errors.New("SESSION_GONE")
	ErrSessionBusy    = errors.New("SESSION_BUSY")
)

// Code returns the wire error code for err, matching it against the
// taxonomy via errors.Is so wrapped errors still resolve correctly. Falls
// back to BAD_INPUT for anything unrecognised rather than leaking Go error
// text to callers.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrBadInput):
		return "BAD_INPUT"
	case errors.Is(err, ErrBadCard):
		return "BAD_CARD"
	case errors.Is(err, ErrBadRules):
		return "BAD_RULES"
	case errors.Is(err, ErrWrongMode):
		return "WRONG_MODE"
	case errors.Is(err, ErrWrongState):
		return "WRONG_STATE"
	case errors.Is(err, ErrIllegalAction):
		return "ILLEGAL_ACTION"
	case errors.Is(err, ErrShoeExhausted):
		return "SHOE_EXHAUSTED"
	case errors.Is(err, ErrSessionGone):
		return "SESSION_GONE"
	case errors.Is(err, ErrSessionBusy):
		return "SESSION_BUSY"
	default:
		return "BAD_INPUT"
	}
}
