package account

import "errors"

// ErrInvalidAddress indicates a malformed account identifier.
var ErrInvalidAddress = errors.New("account: invalid address")
