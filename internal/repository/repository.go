package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Entity is what a Repository can store
type Entity interface {
	GetID() string
	GetVersion() int64
	SetVersion(v int64)
	Touch(t time.Time)
}

// Repository is a typed view over one kind of the Store
type Repository[T Entity] interface {
	Get(ctx context.Context, id string) (T, error)
	List(ctx context.Context, match func(T) bool) ([]T, error)
	Put(ctx context.Context, entity T) error
	Delete(ctx context.Context, id string) error
}

type repository[T Entity] struct {
	store Store
	kind  Kind
	now   func() time.Time
}

// NewRepository creates a repository for kind. T must be a pointer type.
func NewRepository[T Entity](store Store, kind Kind) Repository[T] {
	return &repository[T]{store: store, kind: kind, now: time.Now}
}

func (r *repository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	rec, err := r.store.Get(ctx, r.kind, id)
	if err != nil {
		return zero, err
	}
	return r.decode(rec)
}

func (r *repository[T]) List(ctx context.Context, match func(T) bool) ([]T, error) {
	recs, err := r.store.List(ctx, r.kind)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		e, err := r.decode(rec)
		if err != nil {
			return nil, err
		}
		if match == nil || match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Put writes entity guarded by its current version and stores the new
// version back on success.
func (r *repository[T]) Put(ctx context.Context, entity T) error {
	entity.Touch(r.now().UTC())
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", r.kind, entity.GetID(), err)
	}

	rec := &Record{
		Kind:    r.kind,
		ID:      entity.GetID(),
		Version: entity.GetVersion(),
		Data:    data,
	}
	if err := r.store.Put(ctx, rec); err != nil {
		return err
	}
	entity.SetVersion(rec.Version)
	return nil
}

func (r *repository[T]) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, r.kind, id)
}

func (r *repository[T]) decode(rec *Record) (T, error) {
	var e T
	if err := json.Unmarshal(rec.Data, &e); err != nil {
		return e, fmt.Errorf("decode %s %s: %w", r.kind, rec.ID, err)
	}
	e.SetVersion(rec.Version)
	return e, nil
}
