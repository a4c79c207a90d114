// Package app provides the dependency injection container for assembling
// application components.
package app

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"

	"github.com/agentsec/secrets/internal/audit"
	auditRepository "github.com/agentsec/secrets/internal/audit/repository"
	"github.com/agentsec/secrets/internal/config"
	credentialService "github.com/agentsec/secrets/internal/credential/service"
	credentialUseCase "github.com/agentsec/secrets/internal/credential/usecase"
	cryptoDomain "github.com/agentsec/secrets/internal/crypto/domain"
	cryptoService "github.com/agentsec/secrets/internal/crypto/service"
	"github.com/agentsec/secrets/internal/database"
	"github.com/agentsec/secrets/internal/http"
	injectUseCase "github.com/agentsec/secrets/internal/inject/usecase"
	"github.com/agentsec/secrets/internal/metrics"
	"github.com/agentsec/secrets/internal/secretstore"
	"github.com/agentsec/secrets/internal/sensitive"
)

// Container holds all application dependencies and provides methods to access
// them. It follows the lazy initialization pattern - components are created on
// first access.
type Container struct {
	config *config.Config

	logger          *slog.Logger
	db              *sql.DB
	cryptoEngine    *cryptoService.Engine
	auditStore      audit.Store
	auditLogger     *audit.Logger
	metricsProvider *metrics.Provider
	registry        credentialUseCase.CredentialRegistry
	scanner         *credentialUseCase.LeakScanner
	injector        *injectUseCase.Injector
	secretBackend   secretstore.Backend
	httpServer      *http.Server
	metricsServer   *http.MetricsServer

	mu                  sync.Mutex
	loggerInit          sync.Once
	dbInit              sync.Once
	cryptoEngineInit    sync.Once
	auditStoreInit      sync.Once
	auditLoggerInit     sync.Once
	metricsProviderInit sync.Once
	registryInit        sync.Once
	scannerInit         sync.Once
	injectorInit        sync.Once
	secretBackendInit   sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
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

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection used by the SQL audit stores.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := c.initDB()
		if err != nil {
			c.initErrors["db"] = err
			return
		}
		c.db = db
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// CryptoEngine returns the AES-256-GCM engine keyed with the resolved master key.
func (c *Container) CryptoEngine() (*cryptoService.Engine, error) {
	c.cryptoEngineInit.Do(func() {
		engine, err := c.initCryptoEngine()
		if err != nil {
			c.initErrors["cryptoEngine"] = err
			return
		}
		c.cryptoEngine = engine
	})
	if storedErr, exists := c.initErrors["cryptoEngine"]; exists {
		return nil, storedErr
	}
	return c.cryptoEngine, nil
}

// AuditStore returns the audit event store selected by configuration.
func (c *Container) AuditStore() (audit.Store, error) {
	c.auditStoreInit.Do(func() {
		store, err := c.initAuditStore()
		if err != nil {
			c.initErrors["auditStore"] = err
			return
		}
		c.auditStore = store
	})
	if storedErr, exists := c.initErrors["auditStore"]; exists {
		return nil, storedErr
	}
	return c.auditStore, nil
}

// AuditLogger returns the buffered tamper-evident audit logger.
func (c *Container) AuditLogger() (*audit.Logger, error) {
	c.auditLoggerInit.Do(func() {
		logger, err := c.initAuditLogger()
		if err != nil {
			c.initErrors["auditLogger"] = err
			return
		}
		c.auditLogger = logger
	})
	if storedErr, exists := c.initErrors["auditLogger"]; exists {
		return nil, storedErr
	}
	return c.auditLogger, nil
}

// MetricsProvider returns the Prometheus metrics provider, or nil when
// metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// CredentialRegistry returns the credential lifecycle registry.
func (c *Container) CredentialRegistry() (credentialUseCase.CredentialRegistry, error) {
	c.registryInit.Do(func() {
		registry, err := c.initCredentialRegistry()
		if err != nil {
			c.initErrors["registry"] = err
			return
		}
		c.registry = registry
	})
	if storedErr, exists := c.initErrors["registry"]; exists {
		return nil, storedErr
	}
	return c.registry, nil
}

// LeakScanner returns the heuristic leak scanner.
func (c *Container) LeakScanner() (*credentialUseCase.LeakScanner, error) {
	c.scannerInit.Do(func() {
		registry, err := c.CredentialRegistry()
		if err != nil {
			c.initErrors["scanner"] = fmt.Errorf("failed to get registry for leak scanner: %w", err)
			return
		}
		c.scanner = credentialUseCase.NewLeakScanner(
			registry,
			sensitive.NewPolicy(),
			credentialUseCase.WithScannerLogger(c.Logger()),
		)
	})
	if storedErr, exists := c.initErrors["scanner"]; exists {
		return nil, storedErr
	}
	return c.scanner, nil
}

// Injector returns the temporary credential injector.
func (c *Container) Injector() (*injectUseCase.Injector, error) {
	c.injectorInit.Do(func() {
		auditLogger, err := c.AuditLogger()
		if err != nil {
			c.initErrors["injector"] = fmt.Errorf("failed to get audit logger for injector: %w", err)
			return
		}
		c.injector = injectUseCase.NewInjector(
			injectUseCase.NewOSEnvironmentStore(),
			auditLogger,
			injectUseCase.WithEnvPrefix(c.config.InjectorEnvPrefix),
			injectUseCase.WithDefaultTTL(c.config.InjectorDefaultTTL),
			injectUseCase.WithDefaultMaxUses(c.config.InjectorDefaultMaxUses),
			injectUseCase.WithInjectorLogger(c.Logger()),
		)
	})
	if storedErr, exists := c.initErrors["injector"]; exists {
		return nil, storedErr
	}
	return c.injector, nil
}

// SecretBackend returns the secret backend resolved from the configured URI.
func (c *Container) SecretBackend() (secretstore.Backend, error) {
	c.secretBackendInit.Do(func() {
		backend, err := c.initSecretBackend()
		if err != nil {
			c.initErrors["secretBackend"] = err
			return
		}
		c.secretBackend = backend
	})
	if storedErr, exists := c.initErrors["secretBackend"]; exists {
		return nil, storedErr
	}
	return c.secretBackend, nil
}

// HTTPServer returns the API HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		server, err := c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		c.httpServer = server
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics HTTP server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = fmt.Errorf("failed to get metrics provider: %w", err)
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Flush buffered audit events before tearing anything down
	if c.auditLogger != nil {
		if err := c.auditLogger.Flush(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("audit logger flush: %w", err))
		}
	}

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

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if c.cryptoEngine != nil {
		c.cryptoEngine.Close()
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
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

// initCryptoEngine resolves the master key and builds the crypto engine.
// Resolution order: explicit hex key, password derivation, KMS unwrap.
func (c *Container) initCryptoEngine() (*cryptoService.Engine, error) {
	switch {
	case c.config.MasterKeyHex != "":
		raw, err := hex.DecodeString(c.config.MasterKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid MASTER_KEY: %w", err)
		}
		key, err := cryptoDomain.NewMasterKey(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid MASTER_KEY: %w", err)
		}
		return cryptoService.NewEngine(key)

	case c.config.MasterPassword != "":
		var salt []byte
		if c.config.MasterKeySaltHex != "" {
			decoded, err := hex.DecodeString(c.config.MasterKeySaltHex)
			if err != nil {
				return nil, fmt.Errorf("invalid MASTER_KEY_SALT: %w", err)
			}
			salt = decoded
		}
		engine, usedSalt, err := cryptoService.NewEngineFromPassword(
			c.config.MasterPassword,
			salt,
			c.config.PBKDF2Iterations,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to derive master key: %w", err)
		}
		if c.config.MasterKeySaltHex == "" {
			c.Logger().Warn("master key salt was generated; persist it to keep the key stable",
				slog.String("salt", hex.EncodeToString(usedSalt)))
		}
		return engine, nil

	case c.config.KMSKeyURI != "" && c.config.KMSWrappedKey != "":
		kms := cryptoService.NewKMSService()
		keeper, err := kms.OpenKeeper(context.Background(), c.config.KMSKeyURI)
		if err != nil {
			return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
		}
		defer func() { _ = keeper.Close() }()

		key, err := cryptoService.UnwrapMasterKey(context.Background(), keeper, c.config.KMSWrappedKey)
		if err != nil {
			return nil, fmt.Errorf("failed to unwrap master key: %w", err)
		}
		return cryptoService.NewEngine(key)

	default:
		return nil, fmt.Errorf("no master key configured: set MASTER_KEY, MASTER_PASSWORD or KMS_KEY_URI with KMS_WRAPPED_KEY")
	}
}

// initAuditStore creates the audit event store selected by configuration.
func (c *Container) initAuditStore() (audit.Store, error) {
	switch c.config.AuditStore {
	case "file":
		return auditRepository.NewFileStore(c.config.AuditLogPath, c.Logger())
	case "postgresql", "mysql":
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for audit store: %w", err)
		}
		if c.config.AuditStore == "mysql" {
			return auditRepository.NewMySQLStore(db), nil
		}
		return auditRepository.NewPostgreSQLStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported audit store: %s", c.config.AuditStore)
	}
}

// initAuditLogger creates the buffered audit logger with the configured
// signing key.
func (c *Container) initAuditLogger() (*audit.Logger, error) {
	if c.config.AuditSigningKeyHex == "" {
		return nil, fmt.Errorf("AUDIT_SIGNING_KEY is required")
	}
	signingKey, err := hex.DecodeString(c.config.AuditSigningKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_SIGNING_KEY: %w", err)
	}

	store, err := c.AuditStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit store: %w", err)
	}

	return audit.NewLogger(store, signingKey,
		audit.WithBufferSize(c.config.AuditBufferSize),
		audit.WithLogger(c.Logger()),
	)
}

// initCredentialRegistry creates the credential registry, decorated with
// metrics when enabled.
func (c *Container) initCredentialRegistry() (credentialUseCase.CredentialRegistry, error) {
	auditLogger, err := c.AuditLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logger for registry: %w", err)
	}

	registry := credentialUseCase.NewCredentialRegistry(
		credentialService.NewDigestHasher(),
		auditLogger,
		credentialUseCase.WithRegistryLogger(c.Logger()),
	)

	if !c.config.MetricsEnabled {
		return registry, nil
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for registry: %w", err)
	}
	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	return credentialUseCase.NewCredentialRegistryWithMetrics(registry, businessMetrics), nil
}

// initSecretBackend registers the built-in backend factories and resolves
// the configured URI.
func (c *Container) initSecretBackend() (secretstore.Backend, error) {
	registry := secretstore.NewRegistry()

	registry.Register("env", func(uri *url.URL) (secretstore.Backend, error) {
		prefix := uri.Host
		if prefix == "" {
			prefix = "SECRET_"
		}
		return secretstore.NewEnvStore(prefix), nil
	})

	registry.Register("file", func(uri *url.URL) (secretstore.Backend, error) {
		engine, err := c.CryptoEngine()
		if err != nil {
			return nil, fmt.Errorf("file backend requires a master key: %w", err)
		}
		return secretstore.NewFileStore(uri.Path, engine)
	})

	return registry.Open(c.config.SecretBackendURI)
}

// initHTTPServer creates the API HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	registry, err := c.CredentialRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get registry for http server: %w", err)
	}

	scanner, err := c.LeakScanner()
	if err != nil {
		return nil, fmt.Errorf("failed to get leak scanner for http server: %w", err)
	}

	injector, err := c.Injector()
	if err != nil {
		return nil, fmt.Errorf("failed to get injector for http server: %w", err)
	}

	auditLogger, err := c.AuditLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logger for http server: %w", err)
	}

	secretBackend, err := c.SecretBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret backend for http server: %w", err)
	}

	server := http.NewServer(
		http.ServerConfig{
			Host:                    c.config.ServerHost,
			Port:                    c.config.ServerPort,
			RateLimitEnabled:        c.config.RateLimitEnabled,
			RateLimitRequestsPerSec: c.config.RateLimitRequestsPerSec,
			RateLimitBurst:          c.config.RateLimitBurst,
			CORSEnabled:             c.config.CORSEnabled,
			CORSAllowOrigins:        c.config.CORSAllowOrigins,
		},
		c.Logger(),
		http.Dependencies{
			Credentials: registry,
			Scanner:     scanner,
			Injector:    injector,
			AuditLog:    auditLogger,
			Secrets:     secretBackend,
		},
	)

	return server, nil
}
