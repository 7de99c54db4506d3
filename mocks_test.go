package paywall_test

import (
	"context"
	"fmt"
	"testing"

	"database/sql"

	paywall "github.com/goliatone/go-paywall"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// MockIdentity implements paywall.Identity for testing
type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Email() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Paid() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockLogger implements paywall.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// stubProvider scripts PaymentProvider behavior per test case
type stubProvider struct {
	createFn func(ctx context.Context, req paywall.PreferenceRequest) (*paywall.Preference, error)
	fetchFn  func(ctx context.Context, id string) (*paywall.ProviderPayment, error)

	createCalls []paywall.PreferenceRequest
	fetchCalls  []string
}

func (s *stubProvider) CreatePreference(ctx context.Context, req paywall.PreferenceRequest) (*paywall.Preference, error) {
	s.createCalls = append(s.createCalls, req)
	if s.createFn == nil {
		return &paywall.Preference{ID: "pref-1", RedirectURL: "https://checkout.test/pref-1"}, nil
	}
	return s.createFn(ctx, req)
}

func (s *stubProvider) FetchPayment(ctx context.Context, id string) (*paywall.ProviderPayment, error) {
	s.fetchCalls = append(s.fetchCalls, id)
	if s.fetchFn == nil {
		return nil, fmt.Errorf("fetch not scripted for %s", id)
	}
	return s.fetchFn(ctx, id)
}

// setupTestDB opens a throwaway in-memory database with the schema created
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)

	// keep the shared in-memory database alive for the whole test
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, model := range []any{
		(*paywall.User)(nil),
		(*paywall.PaymentRecord)(nil),
	} {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		require.NoError(t, err)
	}

	return db
}
