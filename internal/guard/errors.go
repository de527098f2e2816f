package guard

import (
	"errors"
)

// ErrInvalidSetting is returned by a Store write that fails validation. The store is left unchanged.
var ErrInvalidSetting = errors.New("invalid setting")

// A DeniedError reports why a turn-on request was not honored. It is a decision outcome,
// not a fault: the caller is informed and no retry is scheduled.
type DeniedError struct {
	Reason Reason
	Detail string
}

func (e *DeniedError) Error() string {
	msg := "turn-on denied: " + e.Reason.String()
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Denied returns the denial reason if err is a DeniedError.
func Denied(err error) (Reason, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Reason, true
	}
	return ReasonNone, false
}
