package service

import (
	"errors"
	"fmt"
)

// ValidationError rejects bad input before any record is persisted.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// ErrSettlementInProgress rejects a settlement attempt while another one
// holds the per-booking lock.
var ErrSettlementInProgress = errors.New("settlement already in progress for this booking")
