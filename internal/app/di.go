// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	auditUseCase "github.com/allisson/extractvault/internal/audit/usecase"
	applicationFieldsService "github.com/allisson/extractvault/internal/applicationfields/service"
	"github.com/allisson/extractvault/internal/config"
	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	cryptoService "github.com/allisson/extractvault/internal/crypto/service"
	"github.com/allisson/extractvault/internal/database"
	"github.com/allisson/extractvault/internal/elevation"
	extractionHTTP "github.com/allisson/extractvault/internal/extraction/http"
	extractionUseCase "github.com/allisson/extractvault/internal/extraction/usecase"
	"github.com/allisson/extractvault/internal/http"
	"github.com/allisson/extractvault/internal/metrics"
	"github.com/allisson/extractvault/internal/ocr"
)

// Container holds all application dependencies and provides methods to access them.
// Components are created on first access.
type Container struct {
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	txManager       database.TxManager
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Crypto
	kmsService  cryptoService.KMSService
	keyRing     *cryptoDomain.KeyRing
	fieldCipher *cryptoService.FieldCipher

	// Repositories
	extractionRepo       extractionUseCase.Repository
	auditRepo            auditUseCase.Repository
	applicationFieldRepo applicationFieldsService.Repository

	// Collaborators and use cases
	auditUseCase          auditUseCase.AuditUseCase
	applicationFieldStore *applicationFieldsService.FieldStore
	ocrClient             *ocr.Client
	extractionUseCase     extractionUseCase.ExtractionUseCase
	sweeperUseCase        extractionUseCase.SweeperUseCase
	elevationProvider     *elevation.Provider

	// HTTP
	extractionHandler *extractionHTTP.ExtractionHandler
	httpServer        *http.Server
	metricsServer     *http.MetricsServer

	mu                        sync.Mutex
	loggerInit                sync.Once
	dbInit                    sync.Once
	txManagerInit             sync.Once
	metricsProviderInit       sync.Once
	businessMetricsInit       sync.Once
	kmsServiceInit            sync.Once
	keyRingInit               sync.Once
	fieldCipherInit           sync.Once
	extractionRepoInit        sync.Once
	auditRepoInit             sync.Once
	applicationFieldRepoInit  sync.Once
	auditUseCaseInit          sync.Once
	applicationFieldStoreInit sync.Once
	ocrClientInit             sync.Once
	extractionUseCaseInit     sync.Once
	sweeperUseCaseInit        sync.Once
	elevationProviderInit     sync.Once
	extractionHandlerInit     sync.Once
	httpServerInit            sync.Once
	metricsServerInit         sync.Once
	initErrors                map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

func (c *Container) setInitError(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initErrors[name] = err
}

func (c *Container) initError(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[name]
}

// Logger returns the JSON logger configured from LOG_LEVEL.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := c.initDB()
		if err != nil {
			c.setInitError("db", err)
			return
		}
		c.db = db
	})
	if err := c.initError("db"); err != nil {
		return nil, err
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		txManager, err := c.initTxManager()
		if err != nil {
			c.setInitError("txManager", err)
			return
		}
		c.txManager = txManager
	})
	if err := c.initError("txManager"); err != nil {
		return nil, err
	}
	return c.txManager, nil
}

// MetricsProvider returns the Prometheus-backed meter provider, or nil when metrics are
// disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.setInitError("metricsProvider", fmt.Errorf("failed to create metrics provider: %w", err))
			return
		}
		c.metricsProvider = provider
	})
	if err := c.initError("metricsProvider"); err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder, a no-op when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	c.businessMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.setInitError("businessMetrics", err)
			return
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}
		bm, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.setInitError("businessMetrics", fmt.Errorf("failed to create business metrics: %w", err))
			return
		}
		c.businessMetrics = bm
	})
	if err := c.initError("businessMetrics"); err != nil {
		return nil, err
	}
	return c.businessMetrics, nil
}

// Shutdown releases every initialized resource. Field keys are zeroed.
func (c *Container) Shutdown(ctx context.Context) error {
	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.keyRing != nil {
		c.keyRing.Close()
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	return errors.Join(shutdownErrors...)
}

func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager applies STORE_MAX_ATTEMPTS to the default backoff.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}

	policy := database.DefaultRetryPolicy()
	if c.config.StoreMaxAttempts > 0 {
		policy.MaxAttempts = c.config.StoreMaxAttempts
	}
	return database.NewTxManagerWithPolicy(db, policy), nil
}

// ShutdownTimeout bounds graceful shutdown in the CLI commands.
func (c *Container) ShutdownTimeout() time.Duration {
	if c.config.DBConnMaxLifetime > 0 && c.config.DBConnMaxLifetime < 30*time.Second {
		return c.config.DBConnMaxLifetime
	}
	return 30 * time.Second
}
