package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Token tariffs applied by the join flows. The course flow keeps a platform
// margin of CourseJoinCost-CourseHostReward; the exchange flow mints
// ExchangeJoinReward for each party.
const (
	CourseJoinCost     int64 = 25
	CourseHostReward   int64 = 20
	ExchangeJoinReward int64 = 40
)

// MaxAdjustment bounds a single ledger delta in either direction.
const MaxAdjustment int64 = 1_000_000

type LedgerReason string

const (
	ReasonCourseJoinDebit    LedgerReason = "course_join_debit"
	ReasonCourseHostCredit   LedgerReason = "course_host_credit"
	ReasonExchangeJoinReward LedgerReason = "exchange_join_reward"
	ReasonExchangeHostReward LedgerReason = "exchange_requester_reward"
	ReasonManualAdjustment   LedgerReason = "manual_adjustment"
	ReasonSignupGrant        LedgerReason = "signup_grant"
)

type LedgerEntry struct {
	ID           uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	SettlementID *uuid.UUID     `json:"settlementId,omitempty" gorm:"type:uuid;index"`
	UserID       uuid.UUID      `json:"userId" gorm:"type:uuid;not null;index"`
	Delta        int64          `json:"delta" gorm:"not null"`
	BalanceAfter int64          `json:"balanceAfter" gorm:"not null"`
	Reason       LedgerReason   `json:"reason" gorm:"type:varchar(32);not null"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type SettlementKind string

const (
	SettlementCourseJoin   SettlementKind = "course_join"
	SettlementExchangeJoin SettlementKind = "exchange_join"
)

// Settlement records one committed join together with the parties it paid.
type Settlement struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Kind           SettlementKind `json:"kind" gorm:"type:varchar(16);not null"`
	SessionID      uuid.UUID      `json:"sessionId" gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID      `json:"userId" gorm:"type:uuid;not null"`
	CounterpartyID uuid.UUID      `json:"counterpartyId" gorm:"type:uuid;not null"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func (s *Settlement) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
