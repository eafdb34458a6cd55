package formfields

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/data"
)

const (
	DefaultCacheTTL = 5 * time.Minute

	// the cache only ever holds the two listings
	cacheEntries  = 2
	activeKey     = "active"
	everythingKey = "all"
)

// Store persists form field definitions.
type Store interface {
	List(ctx context.Context, activeOnly bool) ([]data.FormField, error)
	Insert(ctx context.Context, fi data.FormFieldInsert) (*data.FormField, error)
	Update(ctx context.Context, id string, fu data.FormFieldUpdate) (*data.FormField, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, orderedIDs []string) error
}

var _ Store = (*data.FormFieldModel)(nil)

// Registry is the schema of the public inquiry form. Listings are cached and every write purges the cache.
type Registry struct {
	store Store
	cache *expirable.LRU[string, []data.FormField]
}

func NewRegistry(store Store, ttl time.Duration) (*Registry, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be greater than zero, got %s", ttl)
	}
	return &Registry{
		store: store,
		cache: expirable.NewLRU[string, []data.FormField](cacheEntries, nil, ttl),
	}, nil
}

// Fields lists the form fields in display order.
func (r *Registry) Fields(ctx context.Context, activeOnly bool) ([]data.FormField, error) {
	key := everythingKey
	if activeOnly {
		key = activeKey
	}
	if fields, ok := r.cache.Get(key); ok {
		return fields, nil
	}

	fields, err := r.store.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("listing form fields: %w", err)
	}
	r.cache.Add(key, fields)
	return fields, nil
}

func (r *Registry) Create(ctx context.Context, fi data.FormFieldInsert) (*data.FormField, error) {
	if err := ValidateRules(fi.FieldType, fi.ValidationRules); err != nil {
		return nil, err
	}
	field, err := r.store.Insert(ctx, fi)
	if err != nil {
		return nil, err
	}
	r.purge(ctx)
	return field, nil
}

// Update edits a field. New rules are checked against the resulting field type.
func (r *Registry) Update(ctx context.Context, id string, fu data.FormFieldUpdate) (*data.FormField, error) {
	if fu.ValidationRules != nil || fu.FieldType != nil {
		current, err := r.find(ctx, id)
		if err != nil {
			return nil, err
		}
		fieldType, rules := current.FieldType, current.ValidationRules
		if fu.FieldType != nil {
			fieldType = *fu.FieldType
		}
		if fu.ValidationRules != nil {
			rules = *fu.ValidationRules
		}
		if err = ValidateRules(fieldType, rules); err != nil {
			return nil, err
		}
	}

	field, err := r.store.Update(ctx, id, fu)
	if err != nil {
		return nil, err
	}
	r.purge(ctx)
	return field, nil
}

func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	r.purge(ctx)
	return nil
}

func (r *Registry) Reorder(ctx context.Context, orderedIDs []string) error {
	if err := r.store.Reorder(ctx, orderedIDs); err != nil {
		return err
	}
	r.purge(ctx)
	return nil
}

func (r *Registry) find(ctx context.Context, id string) (*data.FormField, error) {
	fields, err := r.Fields(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		if fields[i].ID == id {
			return &fields[i], nil
		}
	}
	return nil, data.ErrRecordNotFound
}

func (r *Registry) purge(ctx context.Context) {
	r.cache.Purge()
	log.Ctx(ctx).Debug("form field cache purged")
}

// ValidateSubmission checks values against the active fields and returns the normalized form data. Values for
// unknown or inactive fields are rejected.
func (r *Registry) ValidateSubmission(ctx context.Context, values map[string]any) (data.JSONMap, error) {
	fields, err := r.Fields(ctx, true)
	if err != nil {
		return nil, err
	}
	return validateValues(fields, values)
}
