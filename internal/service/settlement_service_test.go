package service_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/events"
	"github.com/dom/skillswap/internal/repository"
	"github.com/dom/skillswap/internal/repository/postgres"
	"github.com/dom/skillswap/internal/service"
	"github.com/dom/skillswap/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type notification struct {
	target uuid.UUID
	event  string
}

type recordingNotifier struct {
	mu       sync.Mutex
	sessions []notification
	users    []notification
}

func (n *recordingNotifier) NotifySession(sessionID uuid.UUID, event string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sessions = append(n.sessions, notification{sessionID, event})
}

func (n *recordingNotifier) NotifyUser(userID uuid.UUID, event string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, notification{userID, event})
}

func (n *recordingNotifier) counts() (sessions, users int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sessions), len(n.users)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SettlementCompleted
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.SettlementCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) published() []events.SettlementCompleted {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.SettlementCompleted(nil), p.events...)
}

type settlementFixture struct {
	db        *gorm.DB
	repos     *repository.Repositories
	services  *service.Services
	notifier  *recordingNotifier
	publisher *recordingPublisher
}

// failingUserRepo fails the failOn-th balance update.
type failingUserRepo struct {
	repository.UserRepository
	mu     sync.Mutex
	calls  int
	failOn int
}

var errBalanceWrite = errors.New("balance write failed")

func (r *failingUserRepo) ApplyDelta(ctx context.Context, id uuid.UUID, delta int64) (bool, error) {
	r.mu.Lock()
	r.calls++
	fail := r.calls == r.failOn
	r.mu.Unlock()
	if fail {
		return false, errBalanceWrite
	}
	return r.UserRepository.ApplyDelta(ctx, id, delta)
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	return newSettlementFixtureWith(t, nil)
}

func newSettlementFixtureWith(t *testing.T, wrap func(*repository.Repositories)) *settlementFixture {
	t.Helper()
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	if wrap != nil {
		wrap(repos)
	}
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	services := service.NewServices(repos, testutil.TestConfig(), service.SettlementHooks{
		Notifier:  notifier,
		Publisher: publisher,
	}, nil)
	return &settlementFixture{
		db:        testDB.DB,
		repos:     repos,
		services:  services,
		notifier:  notifier,
		publisher: publisher,
	}
}

func (f *settlementFixture) settlements(t *testing.T, sessionID uuid.UUID) []*domain.Settlement {
	t.Helper()
	settlements, err := f.repos.Settlement.ListBySessionID(context.Background(), sessionID)
	require.NoError(t, err)
	return settlements
}

func (f *settlementFixture) entriesByUser(t *testing.T, settlementID uuid.UUID) map[uuid.UUID]*domain.LedgerEntry {
	t.Helper()
	entries, err := f.repos.Ledger.ListBySettlementID(context.Background(), settlementID)
	require.NoError(t, err)
	byUser := make(map[uuid.UUID]*domain.LedgerEntry, len(entries))
	for _, e := range entries {
		byUser[e.UserID] = e
	}
	return byUser
}

func TestSettlementService_JoinCourse(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	host, _ := testutil.NewUserBuilder().WithBalance(0).Build(t, f.db)
	user, _ := testutil.NewUserBuilder().WithBalance(30).Build(t, f.db)
	course := testutil.NewCourseBuilder().WithHost(host).WithMaxAttendees(1).Build(t, f.db)

	result, err := f.services.Settlement.JoinCourse(ctx, course.SessionID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CourseJoinCost, result.Debited)
	assert.Equal(t, domain.CourseHostReward, result.Credited)
	assert.Equal(t, host.ID, result.HostID)

	testutil.AssertBalance(t, f.db, user.ID, 5)
	testutil.AssertBalance(t, f.db, host.ID, 20)
	testutil.AssertAttendeeCount(t, f.db, course.SessionID, 1)

	entries := f.entriesByUser(t, result.SettlementID)
	require.Len(t, entries, 2)
	require.Contains(t, entries, user.ID)
	require.Contains(t, entries, host.ID)
	assert.Equal(t, -domain.CourseJoinCost, entries[user.ID].Delta)
	assert.Equal(t, domain.ReasonCourseJoinDebit, entries[user.ID].Reason)
	assert.Equal(t, int64(5), entries[user.ID].BalanceAfter)
	assert.Equal(t, domain.CourseHostReward, entries[host.ID].Delta)
	assert.Equal(t, domain.ReasonCourseHostCredit, entries[host.ID].Reason)

	settlements := f.settlements(t, course.SessionID)
	require.Len(t, settlements, 1)
	assert.Equal(t, domain.SettlementCourseJoin, settlements[0].Kind)
	assert.Equal(t, host.ID, settlements[0].CounterpartyID)

	sessions, users := f.notifier.counts()
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 2, users)

	published := f.publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, result.SettlementID, published[0].SettlementID)
	assert.Equal(t, -domain.CourseJoinCost, published[0].UserDelta)
	assert.Equal(t, domain.CourseHostReward, published[0].CounterpartyDelta)

	t.Run("full course leaves the next user untouched", func(t *testing.T) {
		other, _ := testutil.NewUserBuilder().WithBalance(30).Build(t, f.db)

		_, err := f.services.Settlement.JoinCourse(ctx, course.SessionID, other.ID)
		assert.ErrorIs(t, err, domain.ErrCourseFull)

		testutil.AssertBalance(t, f.db, other.ID, 30)
		testutil.AssertBalance(t, f.db, host.ID, 20)
		testutil.AssertLedgerCount(t, f.db, other.ID, 0)
		assert.Len(t, f.settlements(t, course.SessionID), 1)
	})

	t.Run("joining twice is refused without a second charge", func(t *testing.T) {
		_, err := f.services.Settlement.JoinCourse(ctx, course.SessionID, user.ID)
		assert.ErrorIs(t, err, domain.ErrAlreadyEnrolled)
		testutil.AssertBalance(t, f.db, user.ID, 5)
	})
}

func TestSettlementService_JoinCourseFailures(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	host, _ := testutil.NewUserBuilder().WithBalance(100).Build(t, f.db)
	course := testutil.NewCourseBuilder().WithHost(host).Build(t, f.db)

	tests := []struct {
		name    string
		balance int64
		userID  func(u *domain.User) uuid.UUID
		course  uuid.UUID
		wantErr error
	}{
		{
			name:    "not enough tokens",
			balance: domain.CourseJoinCost - 1,
			userID:  func(u *domain.User) uuid.UUID { return u.ID },
			course:  course.SessionID,
			wantErr: domain.ErrInsufficientFunds,
		},
		{
			name:    "host joining own course",
			balance: 100,
			userID:  func(*domain.User) uuid.UUID { return host.ID },
			course:  course.SessionID,
			wantErr: domain.ErrHostCannotAttend,
		},
		{
			name:    "unknown course",
			balance: 100,
			userID:  func(u *domain.User) uuid.UUID { return u.ID },
			course:  uuid.New(),
			wantErr: domain.ErrCourseNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, _ := testutil.NewUserBuilder().WithBalance(tt.balance).Build(t, f.db)
			userID := tt.userID(user)

			_, err := f.services.Settlement.JoinCourse(ctx, tt.course, userID)
			assert.ErrorIs(t, err, tt.wantErr)

			testutil.AssertBalance(t, f.db, user.ID, tt.balance)
			testutil.AssertBalance(t, f.db, host.ID, 100)
			testutil.AssertLedgerCount(t, f.db, userID, 0)
		})
	}

	assert.Empty(t, f.settlements(t, course.SessionID))
	testutil.AssertAttendeeCount(t, f.db, course.SessionID, 0)
	sessions, users := f.notifier.counts()
	assert.Zero(t, sessions)
	assert.Zero(t, users)
	assert.Empty(t, f.publisher.published())
}

func TestSettlementService_JoinExchange(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	requester, _ := testutil.NewUserBuilder().WithBalance(0).Build(t, f.db)
	user, _ := testutil.NewUserBuilder().WithBalance(0).Build(t, f.db)
	exchange := testutil.NewExchangeBuilder().WithRequester(requester).Build(t, f.db)

	result, err := f.services.Settlement.JoinExchange(ctx, exchange.SessionID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeJoinReward, result.UserCredited)
	assert.Equal(t, domain.ExchangeJoinReward, result.RequesterCredited)

	testutil.AssertBalance(t, f.db, user.ID, 40)
	testutil.AssertBalance(t, f.db, requester.ID, 40)

	entries := f.entriesByUser(t, result.SettlementID)
	require.Len(t, entries, 2)
	require.Contains(t, entries, user.ID)
	require.Contains(t, entries, requester.ID)
	assert.Equal(t, domain.ReasonExchangeJoinReward, entries[user.ID].Reason)
	assert.Equal(t, domain.ReasonExchangeHostReward, entries[requester.ID].Reason)

	got, err := f.repos.Exchange.GetByID(ctx, exchange.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got.AccepterID)
	assert.Equal(t, user.ID, *got.AccepterID)

	t.Run("second join is refused", func(t *testing.T) {
		other, _ := testutil.NewUserBuilder().WithBalance(0).Build(t, f.db)

		_, err := f.services.Settlement.JoinExchange(ctx, exchange.SessionID, other.ID)
		assert.ErrorIs(t, err, domain.ErrAlreadyAccepted)

		testutil.AssertBalance(t, f.db, other.ID, 0)
		testutil.AssertBalance(t, f.db, requester.ID, 40)
		assert.Len(t, f.settlements(t, exchange.SessionID), 1)
	})

	t.Run("requester cannot join own exchange", func(t *testing.T) {
		open := testutil.NewExchangeBuilder().WithRequester(requester).Build(t, f.db)

		_, err := f.services.Settlement.JoinExchange(ctx, open.SessionID, requester.ID)
		assert.ErrorIs(t, err, domain.ErrCannotAcceptOwnExchange)
		testutil.AssertBalance(t, f.db, requester.ID, 40)
	})

	t.Run("unknown exchange", func(t *testing.T) {
		_, err := f.services.Settlement.JoinExchange(ctx, uuid.New(), user.ID)
		assert.ErrorIs(t, err, domain.ErrExchangeNotFound)
	})
}

func TestSettlementService_PublishFailureKeepsSettlement(t *testing.T) {
	f := newSettlementFixture(t)
	f.publisher.err = errors.New("broker down")

	user, _ := testutil.NewUserBuilder().WithBalance(0).Build(t, f.db)
	exchange := testutil.NewExchangeBuilder().Build(t, f.db)

	_, err := f.services.Settlement.JoinExchange(context.Background(), exchange.SessionID, user.ID)
	require.NoError(t, err)
	testutil.AssertBalance(t, f.db, user.ID, 40)
	assert.Len(t, f.publisher.published(), 1)
}

func TestSettlementService_NestedInCallerTransaction(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithBalance(50).Build(t, f.db)
	course := testutil.NewCourseBuilder().Build(t, f.db)

	t.Run("caller rollback undoes the settlement", func(t *testing.T) {
		callerErr := errors.New("caller gave up")
		err := f.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := f.services.Settlement.JoinCourse(ctx, course.SessionID, user.ID); err != nil {
				return err
			}
			return callerErr
		})
		assert.ErrorIs(t, err, callerErr)

		testutil.AssertBalance(t, f.db, user.ID, 50)
		testutil.AssertAttendeeCount(t, f.db, course.SessionID, 0)
		assert.Empty(t, f.settlements(t, course.SessionID))
	})

	t.Run("side effects wait for the owning transaction", func(t *testing.T) {
		err := f.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
			_, err := f.services.Settlement.JoinCourse(ctx, course.SessionID, user.ID)
			return err
		})
		require.NoError(t, err)

		testutil.AssertBalance(t, f.db, user.ID, 25)
		assert.Len(t, f.settlements(t, course.SessionID), 1)
	})

	sessions, users := f.notifier.counts()
	assert.Zero(t, sessions)
	assert.Zero(t, users)
	assert.Empty(t, f.publisher.published())
}

func TestSettlementService_FailedStepRollsBackEverything(t *testing.T) {
	tests := []struct {
		name   string
		failOn int
	}{
		{"first balance update fails", 1},
		{"second balance update fails", 2},
	}

	for _, tt := range tests {
		t.Run("course/"+tt.name, func(t *testing.T) {
			f := newSettlementFixtureWith(t, func(repos *repository.Repositories) {
				repos.User = &failingUserRepo{UserRepository: repos.User, failOn: tt.failOn}
			})
			host, _ := testutil.NewUserBuilder().WithBalance(0).Build(t, f.db)
			user, _ := testutil.NewUserBuilder().WithBalance(30).Build(t, f.db)
			course := testutil.NewCourseBuilder().WithHost(host).Build(t, f.db)

			result, err := f.services.Settlement.JoinCourse(context.Background(), course.SessionID, user.ID)
			require.ErrorIs(t, err, errBalanceWrite)
			assert.Equal(t, domain.CodeCannotJoinCourse, service.CourseOutcome(result, err).Code)

			testutil.AssertBalance(t, f.db, user.ID, 30)
			testutil.AssertBalance(t, f.db, host.ID, 0)
			testutil.AssertAttendeeCount(t, f.db, course.SessionID, 0)
			testutil.AssertLedgerCount(t, f.db, user.ID, 0)
			testutil.AssertLedgerCount(t, f.db, host.ID, 0)
			assert.Empty(t, f.settlements(t, course.SessionID))

			sessions, users := f.notifier.counts()
			assert.Zero(t, sessions)
			assert.Zero(t, users)
			assert.Empty(t, f.publisher.published())
		})

		t.Run("exchange/"+tt.name, func(t *testing.T) {
			f := newSettlementFixtureWith(t, func(repos *repository.Repositories) {
				repos.User = &failingUserRepo{UserRepository: repos.User, failOn: tt.failOn}
			})
			requester, _ := testutil.NewUserBuilder().WithBalance(0).Build(t, f.db)
			user, _ := testutil.NewUserBuilder().WithBalance(0).Build(t, f.db)
			exchange := testutil.NewExchangeBuilder().WithRequester(requester).Build(t, f.db)

			result, err := f.services.Settlement.JoinExchange(context.Background(), exchange.SessionID, user.ID)
			require.ErrorIs(t, err, errBalanceWrite)
			assert.Equal(t, domain.CodeCannotJoinExchange, service.ExchangeOutcome(result, err).Code)

			testutil.AssertBalance(t, f.db, user.ID, 0)
			testutil.AssertBalance(t, f.db, requester.ID, 0)
			testutil.AssertLedgerCount(t, f.db, user.ID, 0)
			testutil.AssertLedgerCount(t, f.db, requester.ID, 0)
			assert.Empty(t, f.settlements(t, exchange.SessionID))

			got, err := f.repos.Exchange.GetByID(context.Background(), exchange.SessionID)
			require.NoError(t, err)
			assert.Nil(t, got.AccepterID)
		})
	}
}

func TestLedgerService_AdjustAllLocksInUserOrder(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	a, _ := testutil.NewUserBuilder().WithBalance(10).Build(t, f.db)
	b, _ := testutil.NewUserBuilder().WithBalance(10).Build(t, f.db)
	first, second := a, b
	if bytes.Compare(a.ID[:], b.ID[:]) > 0 {
		first, second = b, a
	}

	entries, err := f.services.Ledger.AdjustAll(ctx,
		service.AdjustInput{UserID: second.ID, Delta: 5, Reason: domain.ReasonManualAdjustment},
		service.AdjustInput{UserID: first.ID, Delta: -5, Reason: domain.ReasonManualAdjustment},
	)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].UserID, "entries come back in input order")
	assert.Equal(t, first.ID, entries[1].UserID)
	assert.Less(t, entries[1].ID, entries[0].ID, "lower user id is written first")

	t.Run("a refused debit undoes the earlier credit", func(t *testing.T) {
		_, err := f.services.Ledger.AdjustAll(ctx,
			service.AdjustInput{UserID: first.ID, Delta: 1, Reason: domain.ReasonManualAdjustment},
			service.AdjustInput{UserID: second.ID, Delta: -100, Reason: domain.ReasonManualAdjustment},
		)
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)
		testutil.AssertBalance(t, f.db, first.ID, 5)
		testutil.AssertBalance(t, f.db, second.ID, 15)
	})
}

func TestSettlementService_ConcurrentCourseJoins(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	const (
		capacity = 3
		joiners  = 8
	)

	host, _ := testutil.NewUserBuilder().WithBalance(0).Build(t, f.db)
	course := testutil.NewCourseBuilder().WithHost(host).WithMaxAttendees(capacity).Build(t, f.db)

	users := make([]*domain.User, joiners)
	for i := range users {
		users[i], _ = testutil.NewUserBuilder().WithBalance(50).Build(t, f.db)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		full      int
	)
	for _, u := range users {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			_, err := f.services.Settlement.JoinCourse(ctx, course.SessionID, userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrCourseFull):
				full++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, capacity, successes)
	assert.Equal(t, joiners-capacity, full)
	testutil.AssertAttendeeCount(t, f.db, course.SessionID, capacity)
	testutil.AssertBalance(t, f.db, host.ID, capacity*domain.CourseHostReward)
	assert.Len(t, f.settlements(t, course.SessionID), capacity)

	var charged int
	for _, u := range users {
		balance, err := f.services.Ledger.GetBalance(ctx, u.ID)
		require.NoError(t, err)
		switch balance {
		case 50 - domain.CourseJoinCost:
			charged++
		case 50:
		default:
			t.Errorf("user %s has unexpected balance %d", u.ID, balance)
		}
	}
	assert.Equal(t, capacity, charged)
}

func TestSettlementService_ConcurrentExchangeJoins(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	requester, _ := testutil.NewUserBuilder().WithBalance(0).Build(t, f.db)
	exchange := testutil.NewExchangeBuilder().WithRequester(requester).Build(t, f.db)

	const joiners = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < joiners; i++ {
		user, _ := testutil.NewUserBuilder().WithBalance(0).Build(t, f.db)
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			_, err := f.services.Settlement.JoinExchange(ctx, exchange.SessionID, userID)
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrAlreadyAccepted)
				return
			}
			mu.Lock()
			successes++
			mu.Unlock()
		}(user.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	testutil.AssertBalance(t, f.db, requester.ID, domain.ExchangeJoinReward)
	assert.Len(t, f.settlements(t, exchange.SessionID), 1)
}

func TestCourseOutcome(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status domain.OutcomeStatus
	}{
		{"success", nil, domain.CodeJoinedCourse, domain.OutcomeSuccess},
		{"not found", domain.ErrCourseNotFound, domain.CodeCourseNotFound, domain.OutcomeError},
		{"funds", domain.ErrInsufficientFunds, domain.CodeNotEnoughTokens, domain.OutcomeError},
		{"full", domain.ErrCourseFull, domain.CodeCourseFull, domain.OutcomeError},
		{"enrolled", domain.ErrAlreadyEnrolled, domain.CodeAlreadyEnrolled, domain.OutcomeError},
		{"host", domain.ErrHostCannotAttend, domain.CodeHostCannotAttend, domain.OutcomeError},
		{"wrapped", errors.Join(errors.New("ctx"), domain.ErrCourseFull), domain.CodeCourseFull, domain.OutcomeError},
		{"persistence", errors.New("connection reset"), domain.CodeCannotJoinCourse, domain.OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result *service.CourseSettlement
			if tt.err == nil {
				result = &service.CourseSettlement{}
			}
			outcome := service.CourseOutcome(result, tt.err)
			assert.Equal(t, tt.code, outcome.Code)
			assert.Equal(t, tt.status, outcome.Status)
			assert.Equal(t, tt.err == nil, outcome.OK())
		})
	}

	persistence := service.CourseOutcome(nil, errors.New("pq: relation missing"))
	assert.NotContains(t, persistence.Message, "pq")
}

func TestExchangeOutcome(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{nil, domain.CodeJoinedExchange},
		{domain.ErrExchangeNotFound, domain.CodeExchangeNotFound},
		{domain.ErrAlreadyAccepted, domain.CodeExchangeAlreadyAccepted},
		{domain.ErrCannotAcceptOwnExchange, domain.CodeCannotAcceptOwnExchange},
		{errors.New("boom"), domain.CodeCannotJoinExchange},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			var result *service.ExchangeSettlement
			if tt.err == nil {
				result = &service.ExchangeSettlement{}
			}
			assert.Equal(t, tt.code, service.ExchangeOutcome(result, tt.err).Code)
		})
	}
}
