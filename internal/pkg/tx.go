package pkg

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// WithTx runs fn inside a transaction bound to ctx. The transaction commits
// when fn returns nil and rolls back otherwise. A failed rollback is joined
// to fn's error so callers still match on the original with errors.Is.
// A panic in fn rolls back and is re-raised.
func WithTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
