package table

import (
	"context"
	"log/slog"

	"github.com/elfen20/clone-cave-data-sub003/internal/engine"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
	"github.com/elfen20/clone-cave-data-sub003/internal/search"
)

// Typed wraps a Table with a struct binding so callers move T values in and
// out instead of rows.
type Typed[T any] struct {
	*Table
	binding *fields.Binding[T]
}

// NewTyped builds a typed facade from a binding.
func NewTyped[T any](eng *engine.Engine, database string, b *fields.Binding[T], logger *slog.Logger) *Typed[T] {
	return &Typed[T]{
		Table:   New(eng, database, b.Layout(), logger),
		binding: b,
	}
}

// Binding returns the struct binding behind the facade.
func (t *Typed[T]) Binding() *fields.Binding[T] { return t.binding }

// Insert stores the struct and writes the backend-assigned ID back into it.
func (t *Typed[T]) Insert(ctx context.Context, v *T) error {
	row, err := t.Table.Insert(ctx, t.binding.Row(v))
	if err != nil {
		return err
	}
	return t.binding.Load(row, v)
}

// Update rewrites the stored row identified by the struct's ID value.
func (t *Typed[T]) Update(ctx context.Context, v *T) error {
	return t.Table.Update(ctx, t.binding.Row(v))
}

// Replace updates when the struct's ID exists and inserts otherwise,
// writing the effective ID back.
func (t *Typed[T]) Replace(ctx context.Context, v *T) error {
	row, err := t.Table.Replace(ctx, t.binding.Row(v))
	if err != nil {
		return err
	}
	return t.binding.Load(row, v)
}

// GetStructs returns every matching row loaded into struct values.
func (t *Typed[T]) GetStructs(ctx context.Context, s *search.Search, opts search.ResultOption) ([]T, error) {
	rows, err := t.GetRows(ctx, s, opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(rows))
	for i, row := range rows {
		if err := t.binding.Load(row, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetStruct returns the single matching row as a struct value.
func (t *Typed[T]) GetStruct(ctx context.Context, s *search.Search, opts search.ResultOption) (T, error) {
	var v T
	row, err := t.GetRow(ctx, s, opts)
	if err != nil {
		return v, err
	}
	err = t.binding.Load(row, &v)
	return v, err
}

// GetStructAt returns the matching row at the given position in ID order.
func (t *Typed[T]) GetStructAt(ctx context.Context, s *search.Search, index int) (T, error) {
	var v T
	row, err := t.GetRowAt(ctx, s, index)
	if err != nil {
		return v, err
	}
	err = t.binding.Load(row, &v)
	return v, err
}
