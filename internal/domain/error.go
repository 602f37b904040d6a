package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrCardNotFound       = errors.New("activation card not found")
	ErrCardConflict       = errors.New("activation card is bound to another user")
	ErrInvalidTransition  = errors.New("transition not permitted from current state")
	ErrStoreInconsistency = errors.New("store invariant violated")
	ErrDuplicateCode      = errors.New("activation code already exists")
	ErrRateLimited        = errors.New("too many redemption attempts")

	// Infrastructure-level errors surfaced through repositories
	ErrInvalidExecContext = errors.New("invalid query execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
