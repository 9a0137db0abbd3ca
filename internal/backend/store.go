package backend

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Query is a table-scoped query builder over rows of type T. Every terminal
// call verifies the session first.
type Query[T any] struct {
	ctx     context.Context
	client  *Client
	sess    *Session
	filters []clause.Expression
}

func From[T any](ctx context.Context, c *Client, sess *Session) *Query[T] {
	return &Query[T]{ctx: ctx, client: c, sess: sess}
}

// Eq adds an equality filter on a persisted column name.
func (q *Query[T]) Eq(column string, value any) *Query[T] {
	q.filters = append(q.filters, clause.Eq{Column: clause.Column{Name: column}, Value: value})
	return q
}

func (q *Query[T]) authorize() error {
	_, err := q.client.Auth.Verify(q.ctx, q.sess)
	return err
}

func (q *Query[T]) tx() *gorm.DB {
	tx := q.client.db.WithContext(q.ctx).Model(new(T))
	if len(q.filters) > 0 {
		tx = tx.Clauses(clause.Where{Exprs: q.filters})
	}
	return tx
}

func (q *Query[T]) Get() ([]T, error) {
	if err := q.authorize(); err != nil {
		return nil, err
	}

	var rows []T
	if err := q.tx().Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	return rows, nil
}

// Single returns the one matching row or ErrNotFound.
func (q *Query[T]) Single() (*T, error) {
	if err := q.authorize(); err != nil {
		return nil, err
	}

	var row T
	if err := q.tx().Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("single: %w", err)
	}
	return &row, nil
}

// Insert writes row and fills in backend-assigned columns.
func (q *Query[T]) Insert(row *T) error {
	if err := q.authorize(); err != nil {
		return err
	}
	if err := q.client.db.WithContext(q.ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// Update sets fields on every matching row. It refuses to run unfiltered.
func (q *Query[T]) Update(fields map[string]any) (int64, error) {
	if err := q.authorize(); err != nil {
		return 0, err
	}
	if len(q.filters) == 0 {
		return 0, fmt.Errorf("%w: update without filter", ErrForbidden)
	}

	res := q.tx().Updates(fields)
	if res.Error != nil {
		return 0, fmt.Errorf("update: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes every matching row. It refuses to run unfiltered.
func (q *Query[T]) Delete() (int64, error) {
	if err := q.authorize(); err != nil {
		return 0, err
	}
	if len(q.filters) == 0 {
		return 0, fmt.Errorf("%w: delete without filter", ErrForbidden)
	}

	res := q.client.db.WithContext(q.ctx).
		Clauses(clause.Where{Exprs: q.filters}).
		Delete(new(T))
	if res.Error != nil {
		return 0, fmt.Errorf("delete: %w", res.Error)
	}
	return res.RowsAffected, nil
}
