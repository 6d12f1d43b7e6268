package server

import (
	"context"
	"log"
	"log/slog"
	"os"

	"courserag/app/agent"
	"courserag/app/api"
	"courserag/app/middleware"
	"courserag/app/rag"
	"courserag/app/session"
	"courserag/loader/service"
	"courserag/model"
	"courserag/store"
	"courserag/types"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
}

type Server struct {
	listenAddr string
	logger     *slog.Logger
}

func NewServer(addr string) *Server {
	return &Server{
		listenAddr: addr,
		logger:     slog.Default(),
	}
}

func (s *Server) Stop() {
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()
	cfg := types.ConfigFromEnv()

	pool, err := store.NewPostgresStore(ctx, types.PostgresDSNFromEnv(), model.NewEmbedder())
	if err != nil {
		log.Fatal("error to connect to Postgres database", err)
		return
	}

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error to create tables", err)
		return
	}

	ingester := service.New(pool, cfg)
	docsDir := os.Getenv("DOCS_DIR")
	if docsDir != "" {
		// Bulk load ahead of any query traffic; a bad folder only costs
		// search coverage, not startup.
		courses, chunks, err := ingester.IngestDirectory(ctx, docsDir, false)
		if err != nil {
			s.logger.Error("startup ingestion failed", "error", err)
		} else {
			s.logger.Info("startup ingestion done", "courses", courses, "chunks", chunks)
		}
	}

	system := rag.NewSystem(cfg, pool, session.NewStore(cfg.HistoryWindow), agent.NewGenerator())

	var (
		app            = fiber.New(config)
		checkHandler   = api.NewCheckHandler
		requestHandler = api.NewRequestHandler(system)
		fileHandler    = api.NewFileHandler(ingester, docsDir)
		check          = app.Group("/check")
		apiv1          = app.Group("/api/v1")
	)

	app.Use(cors.New())
	app.Use(middleware.PlugStatic("/"))

	check.Get("/healthy", checkHandler().HandleHealthy)
	apiv1.Post("/query", requestHandler.HandleQuery)
	apiv1.Get("/courses", requestHandler.HandleCourseStats)
	apiv1.Post("/documents", fileHandler.HandleUpload)

	if frontend := os.Getenv("FRONTEND_DIR"); frontend != "" {
		app.Static("/", frontend)
	}

	err = app.Listen(s.listenAddr)
	if err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}
