package shared

import "errors"

// Sentinel errors shared across the engine. Handlers map these onto HTTP
// problem responses; services wrap them with package context.
var (
	// ErrUnknownRole indicates a role name absent from the catalog.
	ErrUnknownRole = errors.New("unknown role")
	// ErrDuplicateRole indicates a catalog registration with a taken name.
	ErrDuplicateRole = errors.New("duplicate role name")
	// ErrDuplicateLevel indicates two roles configured at the same level.
	ErrDuplicateLevel = errors.New("duplicate privilege level")
	// ErrAlreadyActive indicates an active assignment already exists.
	ErrAlreadyActive = errors.New("assignment already active")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnknownOperationType indicates an operation with no configured chain.
	ErrUnknownOperationType = errors.New("unknown operation type")
	// ErrEmptyChainMisconfigured indicates a configured chain with no roles.
	ErrEmptyChainMisconfigured = errors.New("operation chain configured empty")
	// ErrNotPending indicates a decision against a terminal request.
	ErrNotPending = errors.New("request is not pending")
	// ErrUnauthorized indicates the actor's privilege is insufficient.
	ErrUnauthorized = errors.New("insufficient privilege")
	// ErrConflict indicates a lost optimistic-concurrency race; callers
	// should re-read and retry.
	ErrConflict = errors.New("version conflict")
	// ErrAuditUnavailable indicates the audit sink rejected a write. It is
	// recovered locally and never fails the triggering operation.
	ErrAuditUnavailable = errors.New("audit sink unavailable")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
