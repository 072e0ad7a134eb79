package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"stormcloud/config"
	"stormcloud/database"
	"stormcloud/handlers"
	"stormcloud/middleware"
	"stormcloud/repositories"
	"stormcloud/services"
	"stormcloud/storage"
	"stormcloud/tasks"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if err := database.Connect(cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	if err := database.CreateInitialAdmin(cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to create initial admin")
	}

	backend, err := storage.NewLocalBackend(cfg.StorageRoot)
	if err != nil {
		log.Fatal().Err(err).Str("root", cfg.StorageRoot).Msg("failed to open storage root")
	}

	accountRepo := repositories.NewAccountRepository()
	orgRepo := repositories.NewOrganizationRepository()
	fileRepo := repositories.NewFileRepository()
	shareRepo := repositories.NewShareRepository()
	auditRepo := repositories.NewAuditRepository()
	cmsRepo := repositories.NewContentMappingRepository()
	keyRepo := repositories.NewAPIKeyRepository()

	auditor := services.NewAuditor(auditRepo, log.Logger)
	quota := services.NewQuotaService(accountRepo)
	fileService := services.NewFileService(cfg, backend, fileRepo, accountRepo, quota, auditor)
	dirService := services.NewDirectoryService(cfg, backend, fileRepo, auditor)
	searchService := services.NewSearchService(cfg, fileRepo)
	shareService := services.NewShareService(cfg, backend, shareRepo, fileRepo, auditor)
	cmsService := services.NewCMSService(cfg, backend, cmsRepo, fileRepo)

	var runner *tasks.Runner
	if cfg.BulkAsyncEnabled {
		runner = tasks.NewRunner(cfg, shareRepo, cmsRepo, log.Logger)
	}
	var asyncRunner services.AsyncRunner
	if runner != nil {
		asyncRunner = runner
	}
	bulkService := services.NewBulkService(cfg, fileService, accountRepo, asyncRunner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runner != nil {
		runner.Bind(bulkService)
		runner.Start(ctx)
	}

	authHandlers := handlers.NewAuthHandlers(accountRepo, keyRepo)
	fileHandlers := handlers.NewFileHandlers(fileService, dirService)
	bulkHandlers := handlers.NewBulkHandlers(bulkService, runner)
	searchHandlers := handlers.NewSearchHandlers(searchService, accountRepo)
	shareHandlers := handlers.NewShareHandlers(shareService)
	cmsHandlers := handlers.NewCMSHandlers(cmsService, accountRepo)
	adminHandlers := handlers.NewAdminHandlers(accountRepo, orgRepo, auditRepo,
		fileService, dirService, fileRepo, backend)

	app := fiber.New(fiber.Config{
		BodyLimit:             int(cfg.MaxUploadBytes) + 1<<20,
		DisableStartupMessage: true,
	})

	app.Post("/api/auth/login", authHandlers.Login)
	app.Post("/api/auth/logout", authHandlers.Logout)

	// Public surfaces: share links and published pages.
	app.Get("/s/:token", shareHandlers.PublicView)
	app.Get("/s/:token/download", shareHandlers.PublicDownload)
	app.Get("/pages/:username/:slug", cmsHandlers.PublicPage)

	api := app.Group("/api", middleware.RequireAuth(accountRepo, keyRepo))

	api.Get("/auth/me", authHandlers.Me)
	api.Post("/auth/keys", authHandlers.CreateAPIKey)
	api.Get("/auth/keys", authHandlers.ListAPIKeys)
	api.Delete("/auth/keys/:id", authHandlers.DeleteAPIKey)

	api.Get("/files", fileHandlers.List)
	api.Get("/files/info", fileHandlers.Info)
	api.Post("/files/upload", fileHandlers.Upload)
	api.Get("/files/download", fileHandlers.Download)
	api.Get("/files/preview", fileHandlers.Preview)
	api.Put("/files/content", fileHandlers.Edit)
	api.Delete("/files", fileHandlers.Delete)

	api.Post("/directories", fileHandlers.CreateDirectory)
	api.Post("/directories/reorder", fileHandlers.Reorder)
	api.Post("/directories/reset-order", fileHandlers.ResetOrder)

	api.Post("/bulk", bulkHandlers.Submit)
	api.Get("/bulk/:id", bulkHandlers.Status)

	api.Get("/search", searchHandlers.Search)

	api.Post("/shares", shareHandlers.Create)
	api.Get("/shares", shareHandlers.List)
	api.Delete("/shares/:id", shareHandlers.Revoke)

	api.Post("/cms/pages", cmsHandlers.Publish)
	api.Get("/cms/pages", cmsHandlers.List)
	api.Delete("/cms/pages/:slug", cmsHandlers.Unpublish)

	api.Get("/storage/usage", fileHandlers.Usage)

	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.Get("/users", adminHandlers.ListUsers)
	admin.Post("/users", adminHandlers.CreateUser)
	admin.Patch("/users/:username", adminHandlers.UpdateUser)
	admin.Delete("/users/:username", adminHandlers.DeleteUser)
	admin.Post("/users/:username/recalculate", adminHandlers.RecalculateUsage)
	admin.Get("/users/:username/files", adminHandlers.ListUserFiles)
	admin.Post("/users/:username/files", adminHandlers.UploadUserFile)
	admin.Delete("/users/:username/files", adminHandlers.DeleteUserFile)
	admin.Get("/users/:username/search", searchHandlers.AdminSearch)
	admin.Get("/audit", adminHandlers.AuditLog)
	admin.Post("/organizations", adminHandlers.CreateOrganization)
	admin.Get("/organizations", adminHandlers.ListOrganizations)

	log.Info().Str("addr", cfg.ListenAddr).Msg("server listening")
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
