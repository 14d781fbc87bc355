package service

import "context"

// TransactionManager wraps several repository calls in one database
// transaction. fn must use the context it is given.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
