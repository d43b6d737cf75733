package repository

import (
	"context"

	"github.com/dom/skillswap/internal/domain"
	"github.com/google/uuid"
)

// TxManager runs fn inside a transaction carried by the context. A call made
// while a transaction is already active joins it instead of opening a new one.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	InTx(ctx context.Context) bool
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	// ApplyDelta adds delta to the balance only if the result stays
	// non-negative. It reports false when no row was changed.
	ApplyDelta(ctx context.Context, id uuid.UUID, delta int64) (bool, error)
}

type UserSessionRepository interface {
	Create(ctx context.Context, session *domain.UserSession) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// SessionFilter selects sessions visible to a viewer that have not ended at
// Today/Clock.
type SessionFilter struct {
	ViewerID  uuid.UUID
	SkillName string
	Today     string
	Clock     string
}

type CourseRepository interface {
	Create(ctx context.Context, course *domain.Course) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Course, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Course, error)
	Update(ctx context.Context, course *domain.Course) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListAvailable(ctx context.Context, filter SessionFilter) ([]*domain.Course, error)
	ListByHost(ctx context.Context, filter SessionFilter) ([]*domain.Course, error)
	ListByAttendee(ctx context.Context, filter SessionFilter) ([]*domain.Course, error)
}

type AttendanceRepository interface {
	Create(ctx context.Context, attendance *domain.Attendance) error
	Delete(ctx context.Context, courseID, userID uuid.UUID) error
	Count(ctx context.Context, courseID uuid.UUID) (int64, error)
	Exists(ctx context.Context, courseID, userID uuid.UUID) (bool, error)
	ListUsers(ctx context.Context, courseID uuid.UUID) ([]*domain.User, error)
}

type ExchangeRepository interface {
	Create(ctx context.Context, exchange *domain.Exchange) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Exchange, error)
	Update(ctx context.Context, exchange *domain.Exchange) error
	Delete(ctx context.Context, id uuid.UUID) error
	// SetAccepter assigns the accepter only while none is set. It reports
	// false when the exchange was already taken or does not exist.
	SetAccepter(ctx context.Context, id, userID uuid.UUID) (bool, error)
	ListOpen(ctx context.Context, filter SessionFilter) ([]*domain.Exchange, error)
	ListByRequester(ctx context.Context, filter SessionFilter) ([]*domain.Exchange, error)
	ListByAccepter(ctx context.Context, filter SessionFilter) ([]*domain.Exchange, error)
}

type LedgerRepository interface {
	Create(ctx context.Context, entry *domain.LedgerEntry) error
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.LedgerEntry, error)
	ListBySettlementID(ctx context.Context, settlementID uuid.UUID) ([]*domain.LedgerEntry, error)
}

type SettlementRepository interface {
	Create(ctx context.Context, settlement *domain.Settlement) error
	ListBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*domain.Settlement, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id uint) (*domain.Category, error)
	GetAll(ctx context.Context) ([]*domain.Category, error)
}

type SkillRepository interface {
	GetOrCreate(ctx context.Context, name string, categoryID uint) (*domain.Skill, error)
	GetByID(ctx context.Context, id uint) (*domain.Skill, error)
	IncrementSearchCounter(ctx context.Context, nameLike string) error
}

type LocationRepository interface {
	GetOrCreate(ctx context.Context, location *domain.Location) (*domain.Location, error)
}

type Repositories struct {
	Tx          TxManager
	User        UserRepository
	UserSession UserSessionRepository
	Course      CourseRepository
	Attendance  AttendanceRepository
	Exchange    ExchangeRepository
	Ledger      LedgerRepository
	Settlement  SettlementRepository
	Category    CategoryRepository
	Skill       SkillRepository
	Location    LocationRepository
}
