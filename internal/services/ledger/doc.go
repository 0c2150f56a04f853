// Package ledger implements the balance-mutating operations of the wallet
// and escrow core: deposit, withdraw, loan repayment, escrow hold, escrow
// release, and escrow refund.
//
// Every operation runs as a single SERIALIZABLE database transaction and
// funnels all balance changes through one mutation primitive: an exclusive
// row lock on the wallet, a version-checked update, and exactly one audit row
// per touched wallet. Two-wallet operations acquire their locks in ascending
// wallet-ID order. Version conflicts and serialization failures are retried
// with jittered backoff before surfacing as a contention error the client may
// retry with the same idempotency key.
package ledger
