package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AcceptanceService struct {
	tx           repository.TxManager
	exchangeRepo repository.ExchangeRepository
}

func NewAcceptanceService(tx repository.TxManager, exchangeRepo repository.ExchangeRepository) *AcceptanceService {
	return &AcceptanceService{
		tx:           tx,
		exchangeRepo: exchangeRepo,
	}
}

// Accept sets the exchange's accepter. The write only lands while no accepter
// is set, so of two concurrent calls exactly one wins.
func (s *AcceptanceService) Accept(ctx context.Context, sessionID, userID uuid.UUID) (*domain.Exchange, error) {
	var exchange *domain.Exchange
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ex, err := s.exchangeRepo.GetByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrExchangeNotFound
			}
			return fmt.Errorf("load exchange: %w", err)
		}

		if ex.Accepted() {
			return domain.ErrAlreadyAccepted
		}
		if ex.RequesterID == userID {
			return domain.ErrCannotAcceptOwnExchange
		}

		updated, err := s.exchangeRepo.SetAccepter(ctx, sessionID, userID)
		if err != nil {
			return fmt.Errorf("set accepter: %w", err)
		}
		if !updated {
			return domain.ErrAlreadyAccepted
		}

		ex.AccepterID = &userID
		exchange = ex
		return nil
	})
	if err != nil {
		return nil, err
	}
	return exchange, nil
}
