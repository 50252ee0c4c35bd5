package reconcile

import (
	"context"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/brojonat/txfeed/service/backend"
	"github.com/stretchr/testify/mock"
)

type mockSignatures struct{ mock.Mock }

func (m *mockSignatures) ListSignatures(ctx context.Context, address string, limit int) ([]activity.SignatureInfo, error) {
	args := m.Called(ctx, address, limit)
	var out []activity.SignatureInfo
	if v := args.Get(0); v != nil {
		out = v.([]activity.SignatureInfo)
	}
	return out, args.Error(1)
}

type mockTransactions struct{ mock.Mock }

func (m *mockTransactions) GetParsedTransactions(ctx context.Context, signatures []string) ([]*activity.ParsedTransaction, error) {
	args := m.Called(ctx, signatures)
	var out []*activity.ParsedTransaction
	if v := args.Get(0); v != nil {
		out = v.([]*activity.ParsedTransaction)
	}
	return out, args.Error(1)
}

type mockOrders struct{ mock.Mock }

func (m *mockOrders) ListOrders(ctx context.Context, address string) ([]activity.BackendOrder, error) {
	args := m.Called(ctx, address)
	var out []activity.BackendOrder
	if v := args.Get(0); v != nil {
		out = v.([]activity.BackendOrder)
	}
	return out, args.Error(1)
}

func (m *mockOrders) PatchOrder(ctx context.Context, id string, patch backend.OrderPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) LoadActivities(ctx context.Context, address string) (map[string]activity.Activity, error) {
	args := m.Called(ctx, address)
	var out map[string]activity.Activity
	if v := args.Get(0); v != nil {
		out = v.(map[string]activity.Activity)
	}
	return out, args.Error(1)
}

func (m *mockStore) SaveActivities(ctx context.Context, address string, set map[string]activity.Activity) error {
	args := m.Called(ctx, address, set)
	return args.Error(0)
}

type mockCache struct{ mock.Mock }

func (m *mockCache) Get(ctx context.Context, address string) ([]activity.Activity, bool, error) {
	args := m.Called(ctx, address)
	var out []activity.Activity
	if v := args.Get(0); v != nil {
		out = v.([]activity.Activity)
	}
	return out, args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, address string, list []activity.Activity) error {
	args := m.Called(ctx, address, list)
	return args.Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context, address string) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}
