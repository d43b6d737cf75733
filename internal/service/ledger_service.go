package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/repository"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type LedgerService struct {
	tx         repository.TxManager
	userRepo   repository.UserRepository
	ledgerRepo repository.LedgerRepository
}

func NewLedgerService(tx repository.TxManager, userRepo repository.UserRepository, ledgerRepo repository.LedgerRepository) *LedgerService {
	return &LedgerService{
		tx:         tx,
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
	}
}

type AdjustInput struct {
	UserID       uuid.UUID
	Delta        int64
	Reason       domain.LedgerReason
	SettlementID *uuid.UUID
	Metadata     map[string]any
}

// AdjustBalance applies delta to the user's balance and records it.
func (s *LedgerService) AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64, reason domain.LedgerReason) (*domain.LedgerEntry, error) {
	return s.Adjust(ctx, AdjustInput{UserID: userID, Delta: delta, Reason: reason})
}

// Adjust never clamps: a delta that would take the balance below zero fails
// with ErrInsufficientFunds and changes nothing. A zero delta is a no-op and
// returns a nil entry.
func (s *LedgerService) Adjust(ctx context.Context, input AdjustInput) (*domain.LedgerEntry, error) {
	if input.Delta == 0 {
		return nil, nil
	}
	if input.Delta > domain.MaxAdjustment || input.Delta < -domain.MaxAdjustment {
		return nil, domain.ErrInvalidAmount
	}

	var metadata datatypes.JSON
	if len(input.Metadata) > 0 {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode ledger metadata: %w", err)
		}
		metadata = datatypes.JSON(raw)
	}

	var entry *domain.LedgerEntry
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		applied, err := s.userRepo.ApplyDelta(ctx, input.UserID, input.Delta)
		if err != nil {
			return fmt.Errorf("apply balance delta: %w", err)
		}

		user, err := s.userRepo.GetByID(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}
		if !applied {
			return domain.ErrInsufficientFunds
		}

		entry = &domain.LedgerEntry{
			SettlementID: input.SettlementID,
			UserID:       input.UserID,
			Delta:        input.Delta,
			BalanceAfter: user.Balance,
			Reason:       input.Reason,
			Metadata:     metadata,
		}
		if err := s.ledgerRepo.Create(ctx, entry); err != nil {
			return fmt.Errorf("record ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// AdjustAll applies every input in one transaction. Rows are updated in user
// id order so two settlements touching the same pair of users cannot
// deadlock. Entries are returned in input order.
func (s *LedgerService) AdjustAll(ctx context.Context, inputs ...AdjustInput) ([]*domain.LedgerEntry, error) {
	order := make([]int, len(inputs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return bytes.Compare(inputs[a].UserID[:], inputs[b].UserID[:])
	})

	entries := make([]*domain.LedgerEntry, len(inputs))
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, i := range order {
			entry, err := s.Adjust(ctx, inputs[i])
			if err != nil {
				return err
			}
			entries[i] = entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *LedgerService) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrUserNotFound
		}
		return 0, err
	}
	return user.Balance, nil
}

func (s *LedgerService) HasSufficientFunds(ctx context.Context, userID uuid.UUID, amount int64) (bool, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// History lists the user's ledger entries, newest first.
func (s *LedgerService) History(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.ledgerRepo.ListByUserID(ctx, userID, limit)
}
