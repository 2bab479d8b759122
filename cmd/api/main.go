package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/answer"
	"github.com/docqa/backend/internal/api/handlers"
	"github.com/docqa/backend/internal/cache/redis"
	"github.com/docqa/backend/internal/engine"
	"github.com/docqa/backend/internal/extract"
	"github.com/docqa/backend/internal/index/semantic"
	"github.com/docqa/backend/internal/ingestion"
	"github.com/docqa/backend/internal/llm"
	"github.com/docqa/backend/internal/metrics"
	"github.com/docqa/backend/internal/middleware/ratelimit"
	"github.com/docqa/backend/internal/middleware/security"
	"github.com/docqa/backend/internal/middleware/validation"
	"github.com/docqa/backend/internal/retrieval"
	"github.com/docqa/backend/internal/session"
	"github.com/docqa/backend/internal/storage/sqlite"
	"github.com/docqa/backend/pkg/config"
	appLogger "github.com/docqa/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Document QA API Server")

	metrics.Register()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var embeddingCache llm.EmbeddingCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLHours)*time.Hour,
		)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		embeddingCache = redisClient
	}

	llmClient := llm.NewClient(llm.Options{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		EmbeddingModel:    cfg.LLM.EmbeddingModel,
		Temperature:       cfg.LLM.Temperature,
		MaxTokens:         cfg.LLM.MaxTokens,
		CompletionTimeout: time.Duration(cfg.LLM.CompletionTimeoutSec) * time.Second,
		EmbeddingTimeout:  time.Duration(cfg.LLM.EmbeddingTimeoutSec) * time.Second,
		Cache:             embeddingCache,
	})

	indexFactory, milvusClose, err := buildIndexFactory(cfg)
	if err != nil {
		appLogger.Fatal("Failed to set up vector index", zap.Error(err))
	}
	if milvusClose != nil {
		defer milvusClose()
	}

	chunker, err := ingestion.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		appLogger.Fatal("Invalid chunking configuration", zap.Error(err))
	}

	store := session.NewMemoryStore()
	processor := ingestion.NewProcessor(chunker, llmClient, indexFactory, sqliteClient)
	retriever := retrieval.New(llmClient, cfg.Retrieval.TopK, cfg.Retrieval.CandidateK, cfg.Retrieval.SemanticWeight)
	composer := answer.NewComposer(llmClient, cfg.Session.HistoryWindow)
	eng := engine.New(store, processor, retriever, composer, sqliteClient)

	extractor := extract.NewPDFService(
		os.Getenv("DOCQA_EXTRACT_URL"),
		60*time.Second,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{MaxRequestsPerMinute: 60})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxUploadBytes: cfg.Server.BodyLimit,
	}))

	sessionHandler := handlers.NewSessionHandler(eng)
	documentHandler := handlers.NewDocumentHandler(eng, extractor)
	queryHandler := handlers.NewQueryHandler(eng)
	wsHandler := handlers.NewWebSocketHandler(eng)

	api := app.Group("/api/v1")

	api.Post("/sessions", sessionHandler.CreateSession)
	api.Get("/sessions/:sessionId", sessionHandler.GetSession)
	api.Delete("/sessions/:sessionId", sessionHandler.EndSession)

	api.Post("/sessions/:sessionId/documents", documentHandler.UploadDocuments)
	api.Get("/sessions/:sessionId/documents", documentHandler.ListDocuments)

	api.Post("/sessions/:sessionId/ask", queryHandler.Ask)
	api.Get("/sessions/:sessionId/history", queryHandler.GetHistory)
	api.Delete("/sessions/:sessionId/history", queryHandler.ClearHistory)
	api.Get("/sessions/:sessionId/audit", queryHandler.GetAuditHistory)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/:sessionId", func(c *fiber.Ctx) error {
		c.Locals("sessionId", c.Params("sessionId"))
		return websocket.New(wsHandler.HandleConnection)(c)
	})

	app.Get("/metrics", metrics.Handler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if !extractor.Healthy(c.Context()) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "extraction service unreachable",
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	stopSweeper := startIdleSweeper(cfg, store)
	defer stopSweeper()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

// buildIndexFactory picks the semantic index backend. Milvus mode gives
// each build a unique partition so a failed rebuild never touches the
// installed index; memory mode is self-contained.
func buildIndexFactory(cfg *config.Config) (ingestion.IndexFactory, func(), error) {
	if cfg.Vector.Provider != "milvus" {
		return func(string) semantic.Index {
			return semantic.NewMemoryIndex()
		}, nil, nil
	}

	ctx := context.Background()

	mc, err := milvusclient.NewGrpcClient(ctx, cfg.Vector.Endpoint)
	if err != nil {
		return nil, nil, err
	}

	if err := semantic.EnsureCollection(ctx, mc, cfg.Vector.Collection, cfg.Vector.Dim); err != nil {
		mc.Close()
		return nil, nil, err
	}

	factory := func(sessionID string) semantic.Index {
		// Partition names only allow [A-Za-z0-9_]; session IDs are UUIDs.
		partition := fmt.Sprintf("s_%s_%s",
			strings.ReplaceAll(sessionID, "-", ""),
			strings.ReplaceAll(uuid.New().String()[:8], "-", ""),
		)
		return semantic.NewMilvusIndex(mc, cfg.Vector.Collection, partition, cfg.Vector.Dim)
	}

	return factory, func() { mc.Close() }, nil
}

// startIdleSweeper ends sessions idle past the configured TTL. Disabled
// when the TTL is zero.
func startIdleSweeper(cfg *config.Config, store *session.MemoryStore) func() {
	if cfg.Session.IdleTTLMinutes <= 0 {
		return func() {}
	}

	ttl := time.Duration(cfg.Session.IdleTTLMinutes) * time.Minute
	ticker := time.NewTicker(ttl / 2)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				for _, sess := range store.DeleteIdle(ttl) {
					if sem := sess.SemanticIndex(); sem != nil {
						if err := sem.Drop(context.Background()); err != nil {
							appLogger.Warn("Failed to release idle session index", zap.Error(err))
						}
					}
					appLogger.Info("Idle session removed", zap.String("session_id", sess.ID))
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
