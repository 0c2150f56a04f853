package repositories

import "errors"

// Sentinel errors the service layer discriminates on. Database driver errors
// are translated to these at the repository boundary; raw errors are wrapped
// so they stay inspectable in logs but never drive control flow by string.
var (
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrWalletExists            = errors.New("wallet already exists for owner")
	ErrVersionConflict         = errors.New("wallet version conflict")
	ErrSerializationFailure    = errors.New("serialization failure")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrEscrowNotFound          = errors.New("escrow not found")
	ErrEscrowExists            = errors.New("escrow already exists for order")
	ErrEscrowStateConflict     = errors.New("escrow state conflict")
	ErrLoanNotFound            = errors.New("loan not found")
)
