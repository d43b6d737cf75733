package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dom/skillswap/internal/api"
	"github.com/dom/skillswap/internal/config"
	"github.com/dom/skillswap/internal/metrics"
	"github.com/dom/skillswap/internal/repository"
	repoPostgres "github.com/dom/skillswap/internal/repository/postgres"
	"github.com/dom/skillswap/internal/service"
	"github.com/dom/skillswap/internal/websocket"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB is a migrated database for one test. It is SQLite on a temp file
// unless TESTCONTAINERS=1, in which case a PostgreSQL container is started.
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
	Driver    string
}

// Tables lists every table, children first.
var Tables = []string{
	"ledger_entries",
	"settlements",
	"attendances",
	"courses",
	"exchanges",
	"sessions",
	"locations",
	"skills",
	"categories",
	"user_sessions",
	"users",
}

func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if os.Getenv("TESTCONTAINERS") == "1" && !testing.Short() {
		return NewPostgresTestDB(t)
	}
	return NewSQLiteTestDB(t)
}

// NewSQLiteTestDB opens a fresh database file. The pool holds a single
// connection so concurrent transactions queue instead of failing with
// SQLITE_BUSY.
func NewSQLiteTestDB(t *testing.T) *TestDB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		filepath.Join(t.TempDir(), "skillswap.db"))

	db, err := repoPostgres.NewConnection(repoPostgres.DriverSQLite, dsn, logger.Silent)
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return &TestDB{DB: db, DSN: dsn, Driver: repoPostgres.DriverSQLite}
}

// NewPostgresTestDB creates a new PostgreSQL testcontainer and returns a connection
func NewPostgresTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_skillswap"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := repoPostgres.NewConnection(repoPostgres.DriverPostgres, dsn, logger.Silent)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
		Driver:    repoPostgres.DriverPostgres,
	}

	t.Cleanup(func() {
		testDB.Cleanup()
	})

	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		ctx := context.Background()
		tdb.Container.Terminate(ctx)
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	for _, table := range Tables {
		stmt := fmt.Sprintf("DELETE FROM %s", table)
		if tdb.Driver == repoPostgres.DriverPostgres {
			stmt = fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
		}
		if err := tdb.DB.Exec(stmt).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		Environment:        "test",
		DatabaseDriver:     repoPostgres.DriverSQLite,
		JWTSecret:          "test-jwt-secret-key-for-testing-only",
		JWTExpirationHours: 1,
		LoginPath:          "/login",
		DefaultBalance:     50,
		EventsQueue:        "settlement.completed",
	}
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server   *httptest.Server
	DB       *TestDB
	Repos    *repository.Repositories
	Services *service.Services
	Hub      *websocket.Hub
	Metrics  *metrics.Metrics
	Config   *config.Config
}

// NewTestServer creates a complete test server with all dependencies
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	cfg := TestConfig()

	repos := repoPostgres.NewRepositories(testDB.DB)
	hub := websocket.NewHub()
	go hub.Run()

	m := metrics.New()
	services := service.NewServices(repos, cfg, service.SettlementHooks{
		Notifier: hub,
		Metrics:  m,
	}, nil)
	router := api.NewRouter(services, api.Deps{Hub: hub, Metrics: m}, cfg)

	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:   server,
		DB:       testDB,
		Repos:    repos,
		Services: services,
		Hub:      hub,
		Metrics:  m,
		Config:   cfg,
	}

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
	})

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/v1%s", ts.Server.URL, path)
}

// WebSocketURL returns the WebSocket URL with token
func (ts *TestServer) WebSocketURL(token string) string {
	wsURL := "ws" + ts.Server.URL[4:] // Replace "http" with "ws"
	return fmt.Sprintf("%s/api/v1/ws?token=%s", wsURL, token)
}
