package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/events"
	"github.com/dom/skillswap/internal/metrics"
	"github.com/dom/skillswap/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const publishTimeout = 3 * time.Second

// Notifier receives live updates after a settlement commits.
type Notifier interface {
	NotifySession(sessionID uuid.UUID, event string, data any)
	NotifyUser(userID uuid.UUID, event string, data any)
}

// Session and user notification events.
const (
	EventAttendeeJoined   = "attendee_joined"
	EventAttendeeLeft     = "attendee_left"
	EventExchangeAccepted = "exchange_accepted"
	EventSessionUpdated   = "session_updated"
	EventSessionDeleted   = "session_deleted"
	EventBalanceChanged   = "balance_changed"
)

// SettlementHooks are the post-commit collaborators. Any of them may be nil.
type SettlementHooks struct {
	Notifier  Notifier
	Publisher events.Publisher
	Metrics   *metrics.Metrics
}

// SettlementService runs the two join flows. Each flow registers the user and
// moves tokens inside one transaction; a failure at any step rolls back all of it.
type SettlementService struct {
	tx             repository.TxManager
	courseRepo     repository.CourseRepository
	exchangeRepo   repository.ExchangeRepository
	settlementRepo repository.SettlementRepository
	enrollment     *EnrollmentService
	acceptance     *AcceptanceService
	ledger         *LedgerService
	hooks          SettlementHooks
	logger         *log.Logger
}

func NewSettlementService(
	tx repository.TxManager,
	courseRepo repository.CourseRepository,
	exchangeRepo repository.ExchangeRepository,
	settlementRepo repository.SettlementRepository,
	enrollment *EnrollmentService,
	acceptance *AcceptanceService,
	ledger *LedgerService,
	hooks SettlementHooks,
	logger *log.Logger,
) *SettlementService {
	if logger == nil {
		logger = log.Default()
	}
	return &SettlementService{
		tx:             tx,
		courseRepo:     courseRepo,
		exchangeRepo:   exchangeRepo,
		settlementRepo: settlementRepo,
		enrollment:     enrollment,
		acceptance:     acceptance,
		ledger:         ledger,
		hooks:          hooks,
		logger:         logger,
	}
}

type CourseSettlement struct {
	SettlementID uuid.UUID `json:"settlementId"`
	SessionID    uuid.UUID `json:"sessionId"`
	UserID       uuid.UUID `json:"userId"`
	HostID       uuid.UUID `json:"hostId"`
	Debited      int64     `json:"debited"`
	Credited     int64     `json:"credited"`
}

type ExchangeSettlement struct {
	SettlementID      uuid.UUID `json:"settlementId"`
	SessionID         uuid.UUID `json:"sessionId"`
	UserID            uuid.UUID `json:"userId"`
	RequesterID       uuid.UUID `json:"requesterId"`
	UserCredited      int64     `json:"userCredited"`
	RequesterCredited int64     `json:"requesterCredited"`
}

// JoinCourse charges the user CourseJoinCost and pays the host CourseHostReward.
func (s *SettlementService) JoinCourse(ctx context.Context, sessionID, userID uuid.UUID) (result *CourseSettlement, err error) {
	defer func() {
		s.hooks.Metrics.SettlementObserved(string(domain.SettlementCourseJoin), CourseOutcome(result, err).Code)
	}()

	course, err := s.courseRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, err
	}

	// Read-only pre-check; the debit below re-checks atomically.
	ok, err := s.ledger.HasSufficientFunds(ctx, userID, domain.CourseJoinCost)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInsufficientFunds
	}

	owner := !s.tx.InTx(ctx)
	settlement := &domain.Settlement{
		ID:             uuid.New(),
		Kind:           domain.SettlementCourseJoin,
		SessionID:      sessionID,
		UserID:         userID,
		CounterpartyID: course.HostID,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.enrollment.AddAttendee(ctx, sessionID, userID); err != nil {
			return err
		}
		if _, err := s.ledger.AdjustAll(ctx, AdjustInput{
			UserID:       userID,
			Delta:        -domain.CourseJoinCost,
			Reason:       domain.ReasonCourseJoinDebit,
			SettlementID: &settlement.ID,
			Metadata:     map[string]any{"sessionId": sessionID, "hostId": course.HostID},
		}, AdjustInput{
			UserID:       course.HostID,
			Delta:        domain.CourseHostReward,
			Reason:       domain.ReasonCourseHostCredit,
			SettlementID: &settlement.ID,
			Metadata:     map[string]any{"sessionId": sessionID, "attendeeId": userID},
		}); err != nil {
			return err
		}
		return s.settlementRepo.Create(ctx, settlement)
	})
	if err != nil {
		return nil, err
	}

	result = &CourseSettlement{
		SettlementID: settlement.ID,
		SessionID:    sessionID,
		UserID:       userID,
		HostID:       course.HostID,
		Debited:      domain.CourseJoinCost,
		Credited:     domain.CourseHostReward,
	}

	if owner {
		s.afterCommit(ctx, settlement, EventAttendeeJoined, -domain.CourseJoinCost, domain.CourseHostReward)
	}
	return result, nil
}

// JoinExchange accepts the exchange and rewards both parties with ExchangeJoinReward.
func (s *SettlementService) JoinExchange(ctx context.Context, sessionID, userID uuid.UUID) (result *ExchangeSettlement, err error) {
	defer func() {
		s.hooks.Metrics.SettlementObserved(string(domain.SettlementExchangeJoin), ExchangeOutcome(result, err).Code)
	}()

	exchange, err := s.exchangeRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrExchangeNotFound
		}
		return nil, err
	}
	if exchange.Accepted() {
		return nil, domain.ErrAlreadyAccepted
	}

	owner := !s.tx.InTx(ctx)
	settlement := &domain.Settlement{
		ID:             uuid.New(),
		Kind:           domain.SettlementExchangeJoin,
		SessionID:      sessionID,
		UserID:         userID,
		CounterpartyID: exchange.RequesterID,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.acceptance.Accept(ctx, sessionID, userID); err != nil {
			return err
		}
		if _, err := s.ledger.AdjustAll(ctx, AdjustInput{
			UserID:       userID,
			Delta:        domain.ExchangeJoinReward,
			Reason:       domain.ReasonExchangeJoinReward,
			SettlementID: &settlement.ID,
			Metadata:     map[string]any{"sessionId": sessionID, "requesterId": exchange.RequesterID},
		}, AdjustInput{
			UserID:       exchange.RequesterID,
			Delta:        domain.ExchangeJoinReward,
			Reason:       domain.ReasonExchangeHostReward,
			SettlementID: &settlement.ID,
			Metadata:     map[string]any{"sessionId": sessionID, "accepterId": userID},
		}); err != nil {
			return err
		}
		return s.settlementRepo.Create(ctx, settlement)
	})
	if err != nil {
		return nil, err
	}

	result = &ExchangeSettlement{
		SettlementID:      settlement.ID,
		SessionID:         sessionID,
		UserID:            userID,
		RequesterID:       exchange.RequesterID,
		UserCredited:      domain.ExchangeJoinReward,
		RequesterCredited: domain.ExchangeJoinReward,
	}

	if owner {
		s.afterCommit(ctx, settlement, EventExchangeAccepted, domain.ExchangeJoinReward, domain.ExchangeJoinReward)
	}
	return result, nil
}

// afterCommit emits metrics, live notifications and the broker event. None of
// them can change the settlement's outcome; failures are only logged.
func (s *SettlementService) afterCommit(ctx context.Context, settlement *domain.Settlement, sessionEvent string, userDelta, counterpartyDelta int64) {
	var debited, credited int64
	for _, d := range []int64{userDelta, counterpartyDelta} {
		if d < 0 {
			debited += -d
		} else {
			credited += d
		}
	}
	s.hooks.Metrics.TokensMoved(debited, credited)

	if n := s.hooks.Notifier; n != nil {
		n.NotifySession(settlement.SessionID, sessionEvent, map[string]any{
			"sessionId": settlement.SessionID,
			"userId":    settlement.UserID,
		})
		n.NotifyUser(settlement.UserID, EventBalanceChanged, map[string]any{
			"delta":        userDelta,
			"settlementId": settlement.ID,
		})
		n.NotifyUser(settlement.CounterpartyID, EventBalanceChanged, map[string]any{
			"delta":        counterpartyDelta,
			"settlementId": settlement.ID,
		})
	}

	if s.hooks.Publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		err := s.hooks.Publisher.Publish(pubCtx, events.SettlementCompleted{
			SettlementID:      settlement.ID,
			Kind:              string(settlement.Kind),
			SessionID:         settlement.SessionID,
			UserID:            settlement.UserID,
			CounterpartyID:    settlement.CounterpartyID,
			UserDelta:         userDelta,
			CounterpartyDelta: counterpartyDelta,
			OccurredAt:        time.Now().UTC(),
		})
		if err != nil {
			s.logger.Printf("ERROR [settlement] publish %s: %v", settlement.ID, err)
		}
	}
}

type errorCode struct {
	err  error
	code string
}

var courseErrorCodes = []errorCode{
	{domain.ErrCourseNotFound, domain.CodeCourseNotFound},
	{domain.ErrInsufficientFunds, domain.CodeNotEnoughTokens},
	{domain.ErrCourseFull, domain.CodeCourseFull},
	{domain.ErrAlreadyEnrolled, domain.CodeAlreadyEnrolled},
	{domain.ErrHostCannotAttend, domain.CodeHostCannotAttend},
}

var exchangeErrorCodes = []errorCode{
	{domain.ErrExchangeNotFound, domain.CodeExchangeNotFound},
	{domain.ErrAlreadyAccepted, domain.CodeExchangeAlreadyAccepted},
	{domain.ErrCannotAcceptOwnExchange, domain.CodeCannotAcceptOwnExchange},
}

// CourseOutcome classifies a JoinCourse result for the presentation layer.
func CourseOutcome(result *CourseSettlement, err error) domain.Outcome {
	if err == nil {
		return domain.Outcome{
			Status:  domain.OutcomeSuccess,
			Code:    domain.CodeJoinedCourse,
			Message: "joined course",
			Data:    result,
		}
	}
	return errorOutcome(err, courseErrorCodes, domain.CodeCannotJoinCourse)
}

// ExchangeOutcome classifies a JoinExchange result for the presentation layer.
func ExchangeOutcome(result *ExchangeSettlement, err error) domain.Outcome {
	if err == nil {
		return domain.Outcome{
			Status:  domain.OutcomeSuccess,
			Code:    domain.CodeJoinedExchange,
			Message: "joined exchange",
			Data:    result,
		}
	}
	return errorOutcome(err, exchangeErrorCodes, domain.CodeCannotJoinExchange)
}

func errorOutcome(err error, codes []errorCode, fallback string) domain.Outcome {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return domain.Outcome{Status: domain.OutcomeError, Code: c.code, Message: c.err.Error()}
		}
	}
	return domain.Outcome{Status: domain.OutcomeError, Code: fallback, Message: "the join could not be completed"}
}
