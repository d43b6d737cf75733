package postgres

import (
	"context"

	"github.com/dom/skillswap/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *ledgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Create(ctx context.Context, entry *domain.LedgerEntry) error {
	return conn(ctx, r.db).Create(entry).Error
}

func (r *ledgerRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	err := conn(ctx, r.db).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *ledgerRepository) ListBySettlementID(ctx context.Context, settlementID uuid.UUID) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	err := conn(ctx, r.db).
		Where("settlement_id = ?", settlementID).
		Order("id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

type settlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *settlementRepository {
	return &settlementRepository{db: db}
}

func (r *settlementRepository) Create(ctx context.Context, settlement *domain.Settlement) error {
	return conn(ctx, r.db).Create(settlement).Error
}

func (r *settlementRepository) ListBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*domain.Settlement, error) {
	var settlements []*domain.Settlement
	err := conn(ctx, r.db).
		Where("session_id = ?", sessionID).
		Order("created_at").
		Find(&settlements).Error
	if err != nil {
		return nil, err
	}
	return settlements, nil
}
