package port

import "context"

// TransactionManager runs fn within a database transaction, committing
// on success and rolling back on error or panic.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
