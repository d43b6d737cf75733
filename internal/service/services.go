package service

import (
	"log"

	"github.com/dom/skillswap/internal/config"
	"github.com/dom/skillswap/internal/repository"
)

type Services struct {
	Auth       *AuthService
	Ledger     *LedgerService
	Enrollment *EnrollmentService
	Acceptance *AcceptanceService
	Settlement *SettlementService
	Catalog    *CatalogService
	Profile    *ProfileService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, hooks SettlementHooks, logger *log.Logger) *Services {
	ledger := NewLedgerService(repos.Tx, repos.User, repos.Ledger)
	enrollment := NewEnrollmentService(repos.Tx, repos.Course, repos.Attendance)
	acceptance := NewAcceptanceService(repos.Tx, repos.Exchange)

	return &Services{
		Auth:       NewAuthService(repos.Tx, repos.User, repos.UserSession, ledger, cfg),
		Ledger:     ledger,
		Enrollment: enrollment,
		Acceptance: acceptance,
		Settlement: NewSettlementService(
			repos.Tx,
			repos.Course,
			repos.Exchange,
			repos.Settlement,
			enrollment,
			acceptance,
			ledger,
			hooks,
			logger,
		),
		Catalog: NewCatalogService(repos, enrollment, hooks.Notifier),
		Profile: NewProfileService(repos.User, repos.Course, repos.Exchange),
	}
}
