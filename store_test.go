package paywall_test

import (
	"context"
	"testing"

	paywall "github.com/goliatone/go-paywall"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("register defaults the id and lowercases the email", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewUsersRepository(db)

		user, err := repo.Register(ctx, &paywall.User{
			Email:        "Mixed.Case@Example.COM",
			PasswordHash: "hash",
		})

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.Equal(t, "mixed.case@example.com", user.Email)
		assert.False(t, user.Paid)
	})

	t.Run("register enforces the unique email constraint", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewUsersRepository(db)

		_, err := repo.Register(ctx, &paywall.User{Email: "dup@example.com", PasswordHash: "hash"})
		require.NoError(t, err)

		_, err = repo.Register(ctx, &paywall.User{Email: "DUP@example.com", PasswordHash: "other"})

		require.Error(t, err)
		assert.True(t, paywall.IsUniqueViolation(err))
	})

	t.Run("get by identifier resolves email and id", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewUsersRepository(db)

		created, err := repo.Register(ctx, &paywall.User{Email: "find@example.com", PasswordHash: "hash"})
		require.NoError(t, err)

		byEmail, err := repo.GetByIdentifier(ctx, "Find@Example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)

		byID, err := repo.GetByIdentifier(ctx, created.ID.String())
		require.NoError(t, err)
		assert.Equal(t, created.Email, byID.Email)
	})

	t.Run("get by identifier reports record not found", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewUsersRepository(db)

		user, err := repo.GetByIdentifier(ctx, "missing@example.com")

		assert.Nil(t, user)
		require.Error(t, err)
		assert.True(t, repository.IsRecordNotFound(err))
	})

	t.Run("set paid flips the entitlement flag", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewUsersRepository(db)

		created, err := repo.Register(ctx, &paywall.User{Email: "payer@example.com", PasswordHash: "hash"})
		require.NoError(t, err)
		require.False(t, created.Paid)

		updated, err := repo.SetPaid(ctx, created.ID)

		require.NoError(t, err)
		assert.True(t, updated.Paid)

		reloaded, err := repo.GetByIdentifier(ctx, created.ID.String())
		require.NoError(t, err)
		assert.True(t, reloaded.Paid)
	})

	t.Run("set paid is idempotent", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewUsersRepository(db)

		created, err := repo.Register(ctx, &paywall.User{Email: "payer@example.com", PasswordHash: "hash"})
		require.NoError(t, err)

		_, err = repo.SetPaid(ctx, created.ID)
		require.NoError(t, err)

		updated, err := repo.SetPaid(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, updated.Paid)
	})

	t.Run("set paid for an unknown user reports record not found", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewUsersRepository(db)

		user, err := repo.SetPaid(ctx, uuid.New())

		assert.Nil(t, user)
		require.Error(t, err)
		assert.True(t, repository.IsRecordNotFound(err))
	})

	t.Run("track attempted login increments the counter", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewUsersRepository(db)

		created, err := repo.Register(ctx, &paywall.User{Email: "attempts@example.com", PasswordHash: "hash"})
		require.NoError(t, err)

		require.NoError(t, repo.TrackAttemptedLogin(ctx, created))

		reloaded, err := repo.GetByIdentifier(ctx, created.ID.String())
		require.NoError(t, err)
		assert.Equal(t, 1, reloaded.LoginAttempts)
		assert.NotNil(t, reloaded.LoginAttemptAt)
	})

	t.Run("track successful login resets the counter", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewUsersRepository(db)

		created, err := repo.Register(ctx, &paywall.User{Email: "resets@example.com", PasswordHash: "hash"})
		require.NoError(t, err)

		require.NoError(t, repo.TrackAttemptedLogin(ctx, created))
		require.NoError(t, repo.TrackSucccessfulLogin(ctx, created))

		reloaded, err := repo.GetByIdentifier(ctx, created.ID.String())
		require.NoError(t, err)
		assert.Equal(t, 0, reloaded.LoginAttempts)
		assert.Nil(t, reloaded.LoginAttemptAt)
		assert.NotNil(t, reloaded.LoggedInAt)
	})
}

func TestPaymentsRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("insert writes a record on first delivery", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewPaymentsRepository(db)

		inserted, err := repo.Insert(ctx, &paywall.PaymentRecord{
			PaymentID: "pay-1",
			UserID:    uuid.New(),
			Status:    paywall.PaymentStatusApproved,
			Amount:    9.99,
		})

		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("insert swallows duplicates at the constraint", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewPaymentsRepository(db)

		userID := uuid.New()

		inserted, err := repo.Insert(ctx, &paywall.PaymentRecord{
			PaymentID: "pay-dup",
			UserID:    userID,
			Status:    paywall.PaymentStatusApproved,
			Amount:    9.99,
		})
		require.NoError(t, err)
		require.True(t, inserted)

		// same payment id again, different row: no error, nothing written
		inserted, err = repo.Insert(ctx, &paywall.PaymentRecord{
			PaymentID: "pay-dup",
			UserID:    userID,
			Status:    paywall.PaymentStatusApproved,
			Amount:    9.99,
		})
		require.NoError(t, err)
		assert.False(t, inserted)

		record, err := repo.GetByPaymentID(ctx, "pay-dup")
		require.NoError(t, err)
		assert.Equal(t, "pay-dup", record.PaymentID)
	})

	t.Run("get by payment id reports record not found", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewPaymentsRepository(db)

		record, err := repo.GetByPaymentID(ctx, "pay-missing")

		assert.Nil(t, record)
		require.Error(t, err)
		assert.True(t, repository.IsRecordNotFound(err))
	})

	t.Run("persists the provider payload", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewPaymentsRepository(db)

		inserted, err := repo.Insert(ctx, &paywall.PaymentRecord{
			PaymentID: "pay-payload",
			UserID:    uuid.New(),
			Status:    paywall.PaymentStatusRejected,
			Amount:    5,
			Payload: map[string]any{
				"status": "rejected",
				"extra":  "kept verbatim",
			},
		})
		require.NoError(t, err)
		require.True(t, inserted)

		record, err := repo.GetByPaymentID(ctx, "pay-payload")
		require.NoError(t, err)
		assert.Equal(t, "kept verbatim", record.Payload["extra"])
	})
}

func TestRepositoryManager(t *testing.T) {
	t.Run("validates wired repositories", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewRepositoryManager(db)

		assert.NoError(t, repo.Validate())
		assert.NotNil(t, repo.Users())
		assert.NotNil(t, repo.Payments())
	})

	t.Run("run in tx honors cancelled contexts", func(t *testing.T) {
		db := setupTestDB(t)
		repo := paywall.NewRepositoryManager(db)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := repo.RunInTx(ctx, nil, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
