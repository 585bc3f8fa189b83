package store

import "errors"

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrNotOwner       = errors.New("protocol belongs to another account")
	ErrAccountLocked  = errors.New("account temporarily locked")
)
