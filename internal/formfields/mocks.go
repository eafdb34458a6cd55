package formfields

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/schoolhub/schoolhub-backend/internal/data"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) List(ctx context.Context, activeOnly bool) ([]data.FormField, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]data.FormField), args.Error(1)
}

func (m *MockStore) Insert(ctx context.Context, fi data.FormFieldInsert) (*data.FormField, error) {
	args := m.Called(ctx, fi)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*data.FormField), args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, id string, fu data.FormFieldUpdate) (*data.FormField, error) {
	args := m.Called(ctx, id, fu)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*data.FormField), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) Reorder(ctx context.Context, orderedIDs []string) error {
	return m.Called(ctx, orderedIDs).Error(0)
}

var _ Store = (*MockStore)(nil)
