package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/rbac-admin/api"
	"github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/auth"
	"github.com/frahmantamala/rbac-admin/internal/core/events"
	"github.com/frahmantamala/rbac-admin/internal/rbac"
	rbacPostgres "github.com/frahmantamala/rbac-admin/internal/rbac/postgres"
	"github.com/frahmantamala/rbac-admin/internal/transport"
	"github.com/frahmantamala/rbac-admin/internal/transport/middleware"
	"github.com/frahmantamala/rbac-admin/internal/transport/rest"
	"github.com/frahmantamala/rbac-admin/internal/user"
	userPostgres "github.com/frahmantamala/rbac-admin/internal/user/postgres"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer(cmd.Context())
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Redis  *redis.Client
	Bus    *events.EventBus
	Users  *user.Service
	RBAC   *rbac.Service
	Logger *slog.Logger
}

func (d *Dependencies) Close() {
	if d.Bus != nil {
		d.Bus.Wait()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("Redis close error", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Error("Database close error", "error", err)
		}
	}
}

func startHTTPServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	deps, err := initializeDependencies(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	router, err := setupRoutes(ctx, deps)
	if err != nil {
		return err
	}

	cfg := deps.Config.Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		deps.Logger.Info("Starting HTTP server", "address", addr, "env", deps.Config.Env)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	deps.Logger.Info("Server stopped")
	return nil
}

func setupRoutes(ctx context.Context, deps *Dependencies) (*chi.Mux, error) {
	cfg := deps.Config
	lg := deps.Logger

	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(deps.Users, tokens, auth.NewRedisRevocationStore(deps.Redis, ""), lg)

	base := transport.NewBaseHandler(lg)
	handlers := rest.Handlers{
		Auth:          auth.NewHandler(base, authService),
		Users:         user.NewHandler(base, deps.Users),
		RBAC:          rbac.NewHandler(base, deps.RBAC),
		Health:        rest.NewHealthHandler(deps.DB, deps.Redis),
		Authorization: auth.NewRBACAuthorization(deps.RBAC, lg, cfg.Security.EnforcePermissions),
	}
	if !cfg.Security.EnforcePermissions {
		lg.Warn("permission enforcement is disabled; any authenticated user can call management routes")
	}

	opts := rest.Options{
		Logger:         lg,
		AllowedOrigins: cfg.Server.Origins(),
		Production:     cfg.IsProduction(),
		LoginRateLimit: cfg.Security.LoginRateLimit,
		OpenAPI:        api.OpenAPI,
	}
	if cfg.Observability.Metrics.Enabled {
		opts.MetricsPath = cfg.Observability.Metrics.Path
	}

	doc, err := loadOpenAPIDocument(ctx, cfg.Server.OpenAPIPath)
	if err != nil {
		return nil, err
	}
	if cfg.Server.ValidateRequests {
		validator, err := middleware.OpenAPIValidator(doc, lg)
		if err != nil {
			return nil, err
		}
		opts.RequestValidator = validator
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, handlers, opts)
	return router, nil
}

// loadOpenAPIDocument validates the embedded document, or the file at path
// when one is configured.
func loadOpenAPIDocument(ctx context.Context, path string) (*openapi3.T, error) {
	data := api.OpenAPI
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read openapi document: %w", err)
		}
		data = b
	}
	return middleware.LoadOpenAPI(ctx, data)
}

func initializeDependencies(ctx context.Context, withRedis bool) (*Dependencies, error) {
	config, lg, err := bootstrap()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := openGorm(db, config)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	deps := &Dependencies{
		Config: config,
		DB:     db,
		Gorm:   gdb,
		Logger: lg,
	}

	if withRedis {
		rdb, err := initRedis(ctx, config.Redis)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		deps.Redis = rdb
	}

	deps.Bus = events.NewEventBus(lg)
	deps.Bus.Subscribe(events.AllEvents, events.AuditLogger(lg))

	timeout := config.Database.QueryTimeout
	bcryptCost := config.Security.BCryptCost
	deps.Users = user.NewService(userPostgres.NewUserRepository(gdb), lg,
		user.WithBCryptCost(bcryptCost),
		user.WithQueryTimeout(timeout),
		user.WithPublisher(deps.Bus),
	)
	deps.RBAC = rbac.NewService(rbacPostgres.NewRBACRepository(gdb), deps.Users, lg,
		rbac.WithPublisher(deps.Bus),
		rbac.WithQueryTimeout(timeout),
	)

	return deps, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return dbConn, nil
}

// openGorm shares the sqlx pool with gorm so both see the same connections.
func openGorm(db *sqlx.DB, cfg *internal.Config) (*gorm.DB, error) {
	level := gormLogger.Warn
	if cfg.IsProduction() {
		level = gormLogger.Silent
	}
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(level),
		TranslateError: true,
	})
}

func initRedis(ctx context.Context, cfg internal.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}
