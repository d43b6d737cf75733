package postgres

import (
	"fmt"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/repository"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Models lists every table in migration order.
var Models = []any{
	&domain.User{},
	&domain.UserSession{},
	&domain.Category{},
	&domain.Skill{},
	&domain.Location{},
	&domain.SessionCore{},
	&domain.Course{},
	&domain.Attendance{},
	&domain.Exchange{},
	&domain.Settlement{},
	&domain.LedgerEntry{},
}

func Open(driver, databaseURL string, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres, "":
		dialector = postgres.Open(databaseURL)
	case DriverSQLite:
		dialector = sqlite.Open(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models...)
}

func NewConnection(driver, databaseURL string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := Open(driver, databaseURL, logLevel)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		Tx:          NewTxManager(db),
		User:        NewUserRepository(db),
		UserSession: NewUserSessionRepository(db),
		Course:      NewCourseRepository(db),
		Attendance:  NewAttendanceRepository(db),
		Exchange:    NewExchangeRepository(db),
		Ledger:      NewLedgerRepository(db),
		Settlement:  NewSettlementRepository(db),
		Category:    NewCategoryRepository(db),
		Skill:       NewSkillRepository(db),
		Location:    NewLocationRepository(db),
	}
}
