package bootstrap

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/edcrm/chat-import/config"
	app "github.com/edcrm/chat-import/internal/application/chat"
	"github.com/edcrm/chat-import/internal/httpx"
	"github.com/edcrm/chat-import/internal/infrastructure/repository"
	"github.com/edcrm/chat-import/internal/infrastructure/salebot"
	httpecho "github.com/edcrm/chat-import/internal/interfaces/http/echo"
)

func NewHTTPServer(cfg *config.Config, db *gorm.DB, pool *pgxpool.Pool, logger zerolog.Logger) *echo.Echo {
	server := echo.New()
	server.HideBanner = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit("10M"))

	executor := httpx.NewExecutor(logger)
	salebotClient := salebot.NewClient(executor, cfg.Salebot.BaseURL, cfg.Salebot.APIKey, cfg.Salebot.GroupID, logger)
	failover := httpx.NewFailoverClient(executor, httpx.FailoverConfig{
		PrimaryBaseURL:    cfg.Functions.PrimaryBaseURL,
		PrimaryAPIKey:     cfg.Functions.PrimaryAPIKey,
		SecondaryBaseURL:  cfg.Functions.SecondaryBaseURL,
		PrimaryRetries:    cfg.Functions.PrimaryRetries,
		PrimaryRetryDelay: cfg.Functions.PrimaryRetryDelay,
		FallbackEnabled:   cfg.Functions.FallbackEnabled,
	}, logger)

	progressRepo := repository.NewImportProgressRepository(db, cfg.Importer.ListID, logger)
	clientRepo := repository.NewClientRepository(db)
	messageRepo := repository.NewMessageBulkRepository(pool)

	runImport := app.NewRunImportBatch(progressRepo, clientRepo, messageRepo, salebotClient, app.ImportConfig{
		BatchSize:       cfg.Importer.BatchSize,
		HistoryLimit:    cfg.Importer.HistoryLimit,
		InsertChunkSize: cfg.Importer.InsertChunkSize,
		CheckpointEvery: cfg.Importer.CheckpointEvery,
		InterCallDelay:  cfg.Importer.InterCallDelay,
	}, logger)
	getProgress := app.NewGetImportProgress(progressRepo)

	importHandler := httpecho.NewImportHandler(runImport, getProgress)
	functionHandler := httpecho.NewFunctionHandler(failover)

	httpecho.RegisterRoutes(server, importHandler, functionHandler)

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	return server
}
