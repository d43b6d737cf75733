package postgres_test

import (
	"context"
	"testing"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/repository/postgres"
	"github.com/dom/skillswap/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func exchangeIDs(exchanges []*domain.Exchange) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(exchanges))
	for _, e := range exchanges {
		ids = append(ids, e.SessionID)
	}
	return ids
}

func TestExchangeRepository_CreateAndGet(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewExchangeRepository(testDB.DB)
	ctx := context.Background()

	requester, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	exchange := testutil.NewExchangeBuilder().
		WithRequester(requester).
		WithSkills("Piano", "Espagnol").
		Build(t, testDB.DB)

	got, err := repo.GetByID(ctx, exchange.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionKindExchange, got.Session.Kind)
	assert.Equal(t, requester.ID, got.RequesterID)
	assert.False(t, got.Accepted())
	require.NotNil(t, got.Session.SkillTaught)
	assert.Equal(t, "Piano", got.Session.SkillTaught.Name)
	require.NotNil(t, got.SkillRequested)
	assert.Equal(t, "Espagnol", got.SkillRequested.Name)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExchangeRepository_SetAccepter(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewExchangeRepository(testDB.DB)
	ctx := context.Background()

	first, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	second, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	exchange := testutil.NewExchangeBuilder().Build(t, testDB.DB)

	updated, err := repo.SetAccepter(ctx, exchange.SessionID, first.ID)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.SetAccepter(ctx, exchange.SessionID, second.ID)
	require.NoError(t, err)
	assert.False(t, updated, "an accepted exchange keeps its first accepter")

	got, err := repo.GetByID(ctx, exchange.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got.AccepterID)
	assert.Equal(t, first.ID, *got.AccepterID)

	updated, err = repo.SetAccepter(ctx, uuid.New(), first.ID)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestExchangeRepository_UpdateKeepsAccepter(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewExchangeRepository(testDB.DB)
	ctx := context.Background()

	accepter, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	exchange := testutil.NewExchangeBuilder().WithAccepter(accepter).Build(t, testDB.DB)

	exchange.Session.ID = exchange.SessionID
	exchange.Session.EndTime = "16:30"
	exchange.AccepterID = nil
	require.NoError(t, repo.Update(ctx, exchange))

	got, err := repo.GetByID(ctx, exchange.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "16:30", got.Session.EndTime)
	require.NotNil(t, got.AccepterID)
	assert.Equal(t, accepter.ID, *got.AccepterID)
}

func TestExchangeRepository_Delete(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewExchangeRepository(testDB.DB)
	ctx := context.Background()

	exchange := testutil.NewExchangeBuilder().Build(t, testDB.DB)
	require.NoError(t, repo.Delete(ctx, exchange.SessionID))

	_, err := repo.GetByID(ctx, exchange.SessionID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var sessions int64
	require.NoError(t, testDB.DB.Model(&domain.SessionCore{}).Where("id = ?", exchange.SessionID).Count(&sessions).Error)
	assert.Zero(t, sessions)
}

func TestExchangeRepository_Listings(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewExchangeRepository(testDB.DB)
	ctx := context.Background()

	viewer, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	other, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	open := testutil.NewExchangeBuilder().WithRequester(other).WithSkills("Cuisine", "Go").Build(t, testDB.DB)
	own := testutil.NewExchangeBuilder().WithRequester(viewer).Build(t, testDB.DB)
	taken := testutil.NewExchangeBuilder().WithRequester(other).WithAccepter(viewer).Build(t, testDB.DB)
	testutil.NewExchangeBuilder().WithRequester(other).WithSchedule(testutil.Yesterday(), "14:00", "15:00").Build(t, testDB.DB)

	t.Run("open", func(t *testing.T) {
		exchanges, err := repo.ListOpen(ctx, nowFilter(viewer.ID, ""))
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{open.SessionID}, exchangeIDs(exchanges))
	})

	t.Run("open with skill filter", func(t *testing.T) {
		exchanges, err := repo.ListOpen(ctx, nowFilter(viewer.ID, "CUIS"))
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{open.SessionID}, exchangeIDs(exchanges))

		exchanges, err = repo.ListOpen(ctx, nowFilter(viewer.ID, "violon"))
		require.NoError(t, err)
		assert.Empty(t, exchanges)
	})

	t.Run("by requester", func(t *testing.T) {
		exchanges, err := repo.ListByRequester(ctx, nowFilter(viewer.ID, ""))
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{own.SessionID}, exchangeIDs(exchanges))
	})

	t.Run("by accepter", func(t *testing.T) {
		exchanges, err := repo.ListByAccepter(ctx, nowFilter(viewer.ID, ""))
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{taken.SessionID}, exchangeIDs(exchanges))
	})
}
