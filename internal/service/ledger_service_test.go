package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/repository/postgres"
	"github.com/dom/skillswap/internal/service"
	"github.com/dom/skillswap/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_AdjustBalance(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ledger := service.NewLedgerService(repos.Tx, repos.User, repos.Ledger)
	ctx := context.Background()

	tests := []struct {
		name        string
		balance     int64
		delta       int64
		wantErr     error
		wantBalance int64
		wantEntries int64
	}{
		{name: "credit", balance: 50, delta: 40, wantBalance: 90, wantEntries: 1},
		{name: "debit", balance: 30, delta: -25, wantBalance: 5, wantEntries: 1},
		{name: "debit to zero", balance: 25, delta: -25, wantBalance: 0, wantEntries: 1},
		{name: "overdraw is refused, never clamped", balance: 10, delta: -25, wantErr: domain.ErrInsufficientFunds, wantBalance: 10},
		{name: "zero delta is a no-op", balance: 10, delta: 0, wantBalance: 10},
		{name: "credit at the bound", balance: 0, delta: domain.MaxAdjustment, wantBalance: domain.MaxAdjustment, wantEntries: 1},
		{name: "credit past the bound", balance: 10, delta: domain.MaxAdjustment + 1, wantErr: domain.ErrInvalidAmount, wantBalance: 10},
		{name: "huge debit is out of range, not overdraw", balance: 10, delta: -1 << 62, wantErr: domain.ErrInvalidAmount, wantBalance: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, _ := testutil.NewUserBuilder().WithBalance(tt.balance).Build(t, testDB.DB)

			entry, err := ledger.AdjustBalance(ctx, user.ID, tt.delta, domain.ReasonManualAdjustment)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, entry)
			} else {
				require.NoError(t, err)
			}

			testutil.AssertBalance(t, testDB.DB, user.ID, tt.wantBalance)
			testutil.AssertLedgerCount(t, testDB.DB, user.ID, tt.wantEntries)

			if tt.wantEntries == 1 {
				require.NotNil(t, entry)
				assert.Equal(t, tt.delta, entry.Delta)
				assert.Equal(t, tt.wantBalance, entry.BalanceAfter)
				assert.Equal(t, domain.ReasonManualAdjustment, entry.Reason)
			}
		})
	}
}

func TestLedgerService_AdjustUnknownUser(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ledger := service.NewLedgerService(repos.Tx, repos.User, repos.Ledger)

	_, err := ledger.AdjustBalance(context.Background(), uuid.New(), 10, domain.ReasonManualAdjustment)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestLedgerService_AdjustRecordsMetadata(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ledger := service.NewLedgerService(repos.Tx, repos.User, repos.Ledger)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithBalance(0).Build(t, testDB.DB)
	sessionID := uuid.New()

	_, err := ledger.Adjust(ctx, service.AdjustInput{
		UserID:   user.ID,
		Delta:    40,
		Reason:   domain.ReasonExchangeJoinReward,
		Metadata: map[string]any{"sessionId": sessionID},
	})
	require.NoError(t, err)

	entries, err := ledger.History(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(entries[0].Metadata, &meta))
	assert.Equal(t, sessionID.String(), meta["sessionId"])
}

func TestLedgerService_BalanceQueries(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ledger := service.NewLedgerService(repos.Tx, repos.User, repos.Ledger)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithBalance(25).Build(t, testDB.DB)

	balance, err := ledger.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), balance)

	ok, err := ledger.HasSufficientFunds(ctx, user.ID, 25)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.HasSufficientFunds(ctx, user.ID, 26)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ledger.GetBalance(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestLedgerService_History(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ledger := service.NewLedgerService(repos.Tx, repos.User, repos.Ledger)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithBalance(0).Build(t, testDB.DB)
	for _, delta := range []int64{10, 20, -5} {
		_, err := ledger.AdjustBalance(ctx, user.ID, delta, domain.ReasonManualAdjustment)
		require.NoError(t, err)
	}

	entries, err := ledger.History(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(-5), entries[0].Delta)
	assert.Equal(t, int64(25), entries[0].BalanceAfter)

	limited, err := ledger.History(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
