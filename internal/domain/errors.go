package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrNoPairs          = errors.New("no pairs discovered")
	ErrNoVenues         = errors.New("no venues configured")
	ErrStructural       = errors.New("structurally invalid path")
	ErrTokenMetadata    = errors.New("token metadata unavailable")
	ErrConflictingState = errors.New("key present in both skipped and high-profit sets")
	ErrLockHeld         = errors.New("lock already held")
	ErrScanInProgress   = errors.New("scan already in progress")
)
