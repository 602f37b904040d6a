package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within a
// database transaction, passing the underlying transaction handle via `tx`.
//
// RATIONALE
// - Keeps use-case interfaces clean (no transaction types leaking out).
// - Lets repository methods that accept a Tx detect one (implementation-side)
//   and run tx-bound Exec/Query or take advisory locks as needed.
// - Works across storage backends as long as they can hand over a tx handle.
//
// The concrete type of `tx` is infra-defined (pgx.Tx for Postgres).
// Repositories MUST gracefully accept `nil` tx (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
