package postgres

import (
	"context"
	"strings"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type exchangeRepository struct {
	db *gorm.DB
}

func NewExchangeRepository(db *gorm.DB) *exchangeRepository {
	return &exchangeRepository{db: db}
}

func (r *exchangeRepository) Create(ctx context.Context, exchange *domain.Exchange) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		exchange.Session.Kind = domain.SessionKindExchange
		if err := tx.Omit(clause.Associations).Create(&exchange.Session).Error; err != nil {
			return err
		}
		exchange.SessionID = exchange.Session.ID
		return tx.Omit(clause.Associations).Create(exchange).Error
	})
}

func (r *exchangeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Exchange, error) {
	var exchange domain.Exchange
	err := conn(ctx, r.db).
		Preload("Session.SkillTaught.Category").
		Preload("SkillRequested.Category").
		Preload("Requester").
		Preload("Accepter").
		First(&exchange, "session_id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &exchange, nil
}

// Update never touches accepter_id; acceptance only goes through SetAccepter.
func (r *exchangeRepository) Update(ctx context.Context, exchange *domain.Exchange) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&exchange.Session).
			Select("date_session", "start_time", "end_time", "description", "rate_id", "skill_taught_id", "updated_at").
			Updates(&exchange.Session).Error
		if err != nil {
			return err
		}
		return tx.Model(exchange).Select("skill_requested_id").Updates(exchange).Error
	})
}

func (r *exchangeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("session_id = ?", id).Delete(&domain.Exchange{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ?", id).Delete(&domain.SessionCore{}).Error
	})
}

func (r *exchangeRepository) SetAccepter(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	result := conn(ctx, r.db).
		Model(&domain.Exchange{}).
		Where("session_id = ? AND accepter_id IS NULL", id).
		UpdateColumn("accepter_id", userID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *exchangeRepository) ListOpen(ctx context.Context, f repository.SessionFilter) ([]*domain.Exchange, error) {
	q := r.listQuery(ctx, f).
		Where("exchanges.accepter_id IS NULL").
		Where("exchanges.requester_id <> ?", f.ViewerID)
	if f.SkillName != "" {
		q = q.Joins("JOIN skills ON skills.id = sessions.skill_taught_id").
			Where("LOWER(skills.name) LIKE ?", "%"+strings.ToLower(f.SkillName)+"%")
	}

	var exchanges []*domain.Exchange
	if err := q.Find(&exchanges).Error; err != nil {
		return nil, err
	}
	return exchanges, nil
}

func (r *exchangeRepository) ListByRequester(ctx context.Context, f repository.SessionFilter) ([]*domain.Exchange, error) {
	var exchanges []*domain.Exchange
	err := r.listQuery(ctx, f).
		Where("exchanges.requester_id = ?", f.ViewerID).
		Find(&exchanges).Error
	if err != nil {
		return nil, err
	}
	return exchanges, nil
}

func (r *exchangeRepository) ListByAccepter(ctx context.Context, f repository.SessionFilter) ([]*domain.Exchange, error) {
	var exchanges []*domain.Exchange
	err := r.listQuery(ctx, f).
		Where("exchanges.accepter_id = ?", f.ViewerID).
		Find(&exchanges).Error
	if err != nil {
		return nil, err
	}
	return exchanges, nil
}

func (r *exchangeRepository) listQuery(ctx context.Context, f repository.SessionFilter) *gorm.DB {
	return conn(ctx, r.db).
		Model(&domain.Exchange{}).
		Select("exchanges.*").
		Joins("JOIN sessions ON sessions.id = exchanges.session_id").
		Where(notEndedClause, f.Today, f.Today, f.Clock).
		Preload("Session.SkillTaught").
		Preload("SkillRequested").
		Preload("Requester").
		Preload("Accepter").
		Order("sessions.date_session, sessions.start_time")
}
