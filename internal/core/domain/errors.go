package domain

import (
	"errors"
	"fmt"
)

// ErrIOUNotFound is returned by stores when an id does not exist.
var ErrIOUNotFound = errors.New("iou not found")

// ErrDuplicateAuthorization is returned when a (beneficiary, nonce) pair was already stored.
var ErrDuplicateAuthorization = errors.New("duplicate offline authorization")

// TransitionError reports a status change the state machine does not allow.
// Current holds the record as it was when the change was refused.
type TransitionError struct {
	ID      int64
	From    IOUStatus
	To      IOUStatus
	Current *IOU
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("iou %d: transition %s -> %s not allowed", e.ID, e.From, e.To)
}
