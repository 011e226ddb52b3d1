package app

import (
	"context"
	"fmt"

	applicationFieldsRepository "github.com/allisson/extractvault/internal/applicationfields/repository"
	applicationFieldsService "github.com/allisson/extractvault/internal/applicationfields/service"
	auditRepository "github.com/allisson/extractvault/internal/audit/repository"
	auditService "github.com/allisson/extractvault/internal/audit/service"
	auditUseCase "github.com/allisson/extractvault/internal/audit/usecase"
	"github.com/allisson/extractvault/internal/elevation"
	extractionHTTP "github.com/allisson/extractvault/internal/extraction/http"
	extractionRepository "github.com/allisson/extractvault/internal/extraction/repository"
	extractionService "github.com/allisson/extractvault/internal/extraction/service"
	extractionUseCase "github.com/allisson/extractvault/internal/extraction/usecase"
	"github.com/allisson/extractvault/internal/http"
	"github.com/allisson/extractvault/internal/ocr"
)

// ExtractionRepository returns the extraction record repository for the configured driver.
func (c *Container) ExtractionRepository() (extractionUseCase.Repository, error) {
	c.extractionRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.setInitError("extractionRepo", fmt.Errorf("failed to get database for extraction repository: %w", err))
			return
		}
		switch c.config.DBDriver {
		case "postgres":
			c.extractionRepo = extractionRepository.NewPostgreSQLExtractionRepository(db)
		case "mysql":
			c.extractionRepo = extractionRepository.NewMySQLExtractionRepository(db)
		default:
			c.setInitError("extractionRepo", fmt.Errorf("unsupported database driver: %s", c.config.DBDriver))
		}
	})
	if err := c.initError("extractionRepo"); err != nil {
		return nil, err
	}
	return c.extractionRepo, nil
}

// AuditRepository returns the audit event repository for the configured driver.
func (c *Container) AuditRepository() (auditUseCase.Repository, error) {
	c.auditRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.setInitError("auditRepo", fmt.Errorf("failed to get database for audit repository: %w", err))
			return
		}
		switch c.config.DBDriver {
		case "postgres":
			c.auditRepo = auditRepository.NewPostgreSQLAuditEventRepository(db)
		case "mysql":
			c.auditRepo = auditRepository.NewMySQLAuditEventRepository(db)
		default:
			c.setInitError("auditRepo", fmt.Errorf("unsupported database driver: %s", c.config.DBDriver))
		}
	})
	if err := c.initError("auditRepo"); err != nil {
		return nil, err
	}
	return c.auditRepo, nil
}

// ApplicationFieldRepository returns the application sensitive-field repository.
func (c *Container) ApplicationFieldRepository() (applicationFieldsService.Repository, error) {
	c.applicationFieldRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.setInitError(
				"applicationFieldRepo",
				fmt.Errorf("failed to get database for application field repository: %w", err),
			)
			return
		}
		switch c.config.DBDriver {
		case "postgres":
			c.applicationFieldRepo = applicationFieldsRepository.NewPostgreSQLFieldRepository(db)
		case "mysql":
			c.applicationFieldRepo = applicationFieldsRepository.NewMySQLFieldRepository(db)
		default:
			c.setInitError("applicationFieldRepo", fmt.Errorf("unsupported database driver: %s", c.config.DBDriver))
		}
	})
	if err := c.initError("applicationFieldRepo"); err != nil {
		return nil, err
	}
	return c.applicationFieldRepo, nil
}

// AuditUseCase returns the signed audit trail.
func (c *Container) AuditUseCase() (auditUseCase.AuditUseCase, error) {
	c.auditUseCaseInit.Do(func() {
		repo, err := c.AuditRepository()
		if err != nil {
			c.setInitError("auditUseCase", err)
			return
		}
		ring, err := c.KeyRing()
		if err != nil {
			c.setInitError("auditUseCase", fmt.Errorf("failed to get key ring for audit signing: %w", err))
			return
		}
		c.auditUseCase = auditUseCase.NewAuditUseCase(repo, ring, auditService.NewSigner())
	})
	if err := c.initError("auditUseCase"); err != nil {
		return nil, err
	}
	return c.auditUseCase, nil
}

// ApplicationFieldStore returns the writer used by apply.
func (c *Container) ApplicationFieldStore() (*applicationFieldsService.FieldStore, error) {
	c.applicationFieldStoreInit.Do(func() {
		repo, err := c.ApplicationFieldRepository()
		if err != nil {
			c.setInitError("applicationFieldStore", err)
			return
		}
		cipher, err := c.FieldCipher()
		if err != nil {
			c.setInitError("applicationFieldStore", err)
			return
		}
		c.applicationFieldStore = applicationFieldsService.NewFieldStore(repo, cipher)
	})
	if err := c.initError("applicationFieldStore"); err != nil {
		return nil, err
	}
	return c.applicationFieldStore, nil
}

// OCRClient returns the upstream extraction provider client, or nil when OCR_ENDPOINT is
// unset.
func (c *Container) OCRClient() *ocr.Client {
	c.ocrClientInit.Do(func() {
		if c.config.OCREndpoint == "" {
			return
		}
		c.ocrClient = ocr.NewClient(
			c.config.OCREndpoint,
			ocr.WithTimeout(c.config.OCRTimeout),
			ocr.WithRateLimit(c.config.OCRRequestsPerSec),
			ocr.WithLogger(c.Logger()),
		)
	})
	return c.ocrClient
}

// ExtractionUseCase returns the ingest and review use case, instrumented when metrics are
// enabled.
func (c *Container) ExtractionUseCase() (extractionUseCase.ExtractionUseCase, error) {
	c.extractionUseCaseInit.Do(func() {
		useCase, err := c.initExtractionUseCase()
		if err != nil {
			c.setInitError("extractionUseCase", err)
			return
		}
		c.extractionUseCase = useCase
	})
	if err := c.initError("extractionUseCase"); err != nil {
		return nil, err
	}
	return c.extractionUseCase, nil
}

// SweeperUseCase returns the retention sweeper.
func (c *Container) SweeperUseCase() (extractionUseCase.SweeperUseCase, error) {
	c.sweeperUseCaseInit.Do(func() {
		useCase, err := c.initSweeperUseCase()
		if err != nil {
			c.setInitError("sweeperUseCase", err)
			return
		}
		c.sweeperUseCase = useCase
	})
	if err := c.initError("sweeperUseCase"); err != nil {
		return nil, err
	}
	return c.sweeperUseCase, nil
}

// ElevationProvider returns the bearer token issuer and verifier.
func (c *Container) ElevationProvider() (*elevation.Provider, error) {
	c.elevationProviderInit.Do(func() {
		provider, err := elevation.NewProvider(c.config.AuthJWTSecret, c.config.ElevationMaxAge)
		if err != nil {
			c.setInitError("elevationProvider", fmt.Errorf("failed to create elevation provider: %w", err))
			return
		}
		c.elevationProvider = provider
	})
	if err := c.initError("elevationProvider"); err != nil {
		return nil, err
	}
	return c.elevationProvider, nil
}

// ExtractionHandler returns the HTTP handler for extraction routes.
func (c *Container) ExtractionHandler() (*extractionHTTP.ExtractionHandler, error) {
	c.extractionHandlerInit.Do(func() {
		useCase, err := c.ExtractionUseCase()
		if err != nil {
			c.setInitError("extractionHandler", err)
			return
		}
		c.extractionHandler = extractionHTTP.NewExtractionHandler(useCase, c.Logger())
	})
	if err := c.initError("extractionHandler"); err != nil {
		return nil, err
	}
	return c.extractionHandler, nil
}

// HTTPServer returns the review API server with its router set up. ctx bounds background
// middleware work.
func (c *Container) HTTPServer(ctx context.Context) (*http.Server, error) {
	c.httpServerInit.Do(func() {
		server, err := c.initHTTPServer(ctx)
		if err != nil {
			c.setInitError("httpServer", err)
			return
		}
		c.httpServer = server
	})
	if err := c.initError("httpServer"); err != nil {
		return nil, err
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus listener, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.setInitError("metricsServer", err)
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
	})
	if err := c.initError("metricsServer"); err != nil {
		return nil, err
	}
	return c.metricsServer, nil
}

func (c *Container) initExtractionUseCase() (extractionUseCase.ExtractionUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for extraction use case: %w", err)
	}
	repo, err := c.ExtractionRepository()
	if err != nil {
		return nil, err
	}
	cipher, err := c.FieldCipher()
	if err != nil {
		return nil, err
	}
	writer, err := c.ApplicationFieldStore()
	if err != nil {
		return nil, err
	}
	auditor, err := c.AuditUseCase()
	if err != nil {
		return nil, err
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	// A nil *ocr.Client must stay a nil interface.
	var extractor extractionUseCase.Extractor
	if client := c.OCRClient(); client != nil {
		extractor = client
	}

	useCase := extractionUseCase.NewExtractionUseCase(
		extractionUseCase.Config{RetentionWindow: c.config.RetentionWindow},
		txManager,
		repo,
		cipher,
		extractionService.NewFingerprinter(),
		extractor,
		writer,
		auditor,
		c.Logger(),
	)
	return extractionUseCase.NewExtractionUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initSweeperUseCase() (extractionUseCase.SweeperUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for sweeper: %w", err)
	}
	repo, err := c.ExtractionRepository()
	if err != nil {
		return nil, err
	}
	auditor, err := c.AuditUseCase()
	if err != nil {
		return nil, err
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	config := extractionUseCase.SweeperConfig{
		Interval:  c.config.SweepInterval,
		BatchSize: c.config.SweepBatchSize,
	}
	useCase := extractionUseCase.NewSweeperUseCase(config, txManager, repo, auditor, c.Logger())
	return extractionUseCase.NewSweeperUseCaseWithMetrics(useCase, businessMetrics, config, c.Logger()), nil
}

func (c *Container) initHTTPServer(ctx context.Context) (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}
	handler, err := c.ExtractionHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction handler: %w", err)
	}
	provider, err := c.ElevationProvider()
	if err != nil {
		return nil, err
	}
	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(ctx, c.config, handler, provider, metricsProvider)
	return server, nil
}
