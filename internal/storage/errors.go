package storage

import "errors"

var (
	// ErrNotFound is returned when the requested item does not exist.
	ErrNotFound = errors.New("storage: item not found")

	// ErrAlreadyExists is returned when a conditional create finds the
	// key already taken. For toggles this is a lost race, not a fault.
	ErrAlreadyExists = errors.New("storage: item already exists")

	// ErrConditionFailed is returned when a guarded write's condition
	// did not hold at write time.
	ErrConditionFailed = errors.New("storage: condition failed")

	// ErrTransactionConflict is returned when a transaction was canceled
	// by a competing write. Nothing in it was applied.
	ErrTransactionConflict = errors.New("storage: transaction conflict")
)
