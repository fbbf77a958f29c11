package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Polyconseil/xlsx-streaming/internal/config"
	"github.com/Polyconseil/xlsx-streaming/internal/database"
	"github.com/Polyconseil/xlsx-streaming/internal/handler"
	"github.com/Polyconseil/xlsx-streaming/internal/logger"
	"github.com/Polyconseil/xlsx-streaming/internal/service"
	"github.com/Polyconseil/xlsx-streaming/pkg/exportjob"
	"github.com/Polyconseil/xlsx-streaming/pkg/xlsxstream"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type App struct {
	Echo      *echo.Echo
	DB        *sql.DB
	Elastic   *database.ElasticSearchClient
	Datastore *database.DatastoreClient
	Jobs      *exportjob.JobsFile
}

func NewApp() *App {
	return &App{
		Echo: echo.New(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	// Load environment configuration
	if err := config.LoadEnvConfig(); err != nil {
		return fmt.Errorf("failed to load env config: %w", err)
	}
	cfg := config.DefaultEnvConfig

	// Initialize logging
	logger.InitLogging(cfg.LOG_FILE_PATH, cfg.LOG_LEVEL)
	logger.InfoLog(ctx, "Environment variables loaded successfully")

	loc, err := cfg.ExportLocation()
	if err != nil {
		return fmt.Errorf("invalid EXPORT_TIMEZONE: %w", err)
	}
	xlsxstream.SetExportTimezone(loc)

	// Load export jobs
	if cfg.EXPORT_BATCH_SIZE > 0 {
		exportjob.DefaultBatchSize = cfg.EXPORT_BATCH_SIZE
	}
	jobs, err := exportjob.LoadJobs(cfg.JOBS_FILE)
	if err != nil {
		return fmt.Errorf("failed to load export jobs: %w", err)
	}
	jobs.ResolveVariables(nil)
	a.Jobs = jobs
	logger.InfoLog(ctx, "Loaded %d export jobs from %s", len(jobs.Jobs), cfg.JOBS_FILE)

	// Initialize backends
	db, err := database.Open(ctx, DatabaseConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db

	if cfg.ELASTIC_URL != "" {
		if a.Elastic, err = database.NewElasticSearchClient(cfg.ELASTIC_URL); err != nil {
			return err
		}
	}
	if cfg.DATASTORE_PROJECT != "" {
		if a.Datastore, err = database.NewDatastoreClient(ctx, cfg.DATASTORE_PROJECT); err != nil {
			return err
		}
	}

	// Initialize dependencies
	exportSvc := service.NewExportService(jobs, service.Sources{
		DB:              a.DB,
		Elastic:         a.Elastic,
		Datastore:       a.Datastore,
		ScrollKeepAlive: cfg.ELASTIC_SCROLL,
	})
	exportHandler := handler.NewExportHandler(exportSvc)

	// Register Middlewares
	a.RegisterMiddlewares()

	// Register Routes
	a.RegisterRoutes(exportHandler)

	return nil
}

// DatabaseConfig builds the SQL connection settings from the environment.
func DatabaseConfig() database.Config {
	cfg := config.DefaultEnvConfig
	return database.Config{
		Driver:          cfg.DB_DRIVER,
		Host:            cfg.DB_HOST,
		Port:            cfg.DB_PORT,
		User:            cfg.DB_USER,
		Password:        cfg.DB_PASSWORD,
		DBName:          cfg.DB_NAME,
		SSLMode:         cfg.DB_SSL_MODE,
		Path:            cfg.SQLITE_PATH,
		MaxOpenConns:    cfg.DB_MAX_OPEN_CONNS,
		MaxIdleConns:    cfg.DB_MAX_IDLE_CONNS,
		ConnMaxLifetime: cfg.DB_CONN_MAX_LIFETIME,
	}
}

func (a *App) RegisterMiddlewares() {
	a.Echo.Use(middleware.Logger())
	a.Echo.Use(middleware.Recover())
	a.Echo.Use(middleware.CORS())
}

func (a *App) RegisterRoutes(exportHandler *handler.ExportHandler) {
	a.Echo.GET("/jobs", exportHandler.ListJobsHandler)

	exportGroup := a.Echo.Group("/exports")
	exportGroup.GET("/:job", exportHandler.ExportHandler)
	exportGroup.POST("/:job", exportHandler.ExportWithTemplateHandler)
}

func (a *App) Run() error {
	defer a.Close()
	return a.Echo.Start(":" + config.DefaultEnvConfig.APP_PORT)
}

// Close releases the backend connections.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Datastore != nil {
		a.Datastore.Close()
	}
}
