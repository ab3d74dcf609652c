package usecase

import (
	"context"

	"gorm.io/gorm"
)

// Transactor runs a function inside a database transaction. Repositories
// are rebound to the transaction via WithTx so every write in fn commits
// or rolls back together.
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor over the given database handle.
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}
