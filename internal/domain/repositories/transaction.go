package repositories

import "context"

// TxFn is a unit of work that runs within a transaction.
type TxFn func(ctx context.Context) error

// TransactionManager frames a unit of work in a single database transaction.
// Every sync mutation (append, edit, diff-apply, clear-and-rewrite, fork)
// must run through ExecTx so partial application is impossible.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
