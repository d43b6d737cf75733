package main

import (
	"fmt"
	"log"

	"github.com/dom/skillswap/internal/config"
	"github.com/dom/skillswap/internal/repository"
	"github.com/dom/skillswap/internal/repository/postgres"
	"github.com/dom/skillswap/internal/service"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	cfg   *config.Config
	db    *gorm.DB
	repos *repository.Repositories
	svc   *service.Services
)

var rootCmd = &cobra.Command{
	Use:   "skillswap-admin",
	Short: "Maintenance commands for a skillswap database",
	Long: `Operator tooling for the skill exchange backend.

Reads the same environment (or .env file) as the server, so DATABASE_DRIVER,
DATABASE_URL and JWT_SECRET must be set.`,
	SilenceUsage: true,
}

// initDB opens the database without migrating it.
func initDB() error {
	if db != nil {
		return nil
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err = postgres.Open(cfg.DatabaseDriver, cfg.DatabaseURL, logger.Warn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	repos = postgres.NewRepositories(db)
	svc = service.NewServices(repos, cfg, service.SettlementHooks{}, log.Default())
	return nil
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(eventsCmd)
}
