package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"coursemcq/features/course"
	"coursemcq/features/quiz"
	"coursemcq/internal/adapter/gemini"
	"coursemcq/internal/config"
	"coursemcq/internal/extract"
	"coursemcq/internal/logger"
	"coursemcq/internal/middleware"
	"coursemcq/internal/retrieval"
)

func main() {
	// Structured logger with correlation IDs pulled from request context
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// 2. Gemini Adapters
	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbeddingModel)
	if err != nil {
		slog.Error("failed to create gemini embedder", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	llm, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Error("failed to create gemini generator", "error", err)
		os.Exit(1)
	}
	defer llm.Close()

	// 3. Retrieval
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(embedder, queryLogger)

	// 4. Feature: Course
	registry := course.NewRegistry(cfg.CoursePDFDir)
	courseHandler := course.NewHandler(registry)

	// 5. Feature: Quiz
	mcqGenerator := quiz.NewGenerator(llm, cfg.MaxRegenAttempts, cfg.MaxContextChars)
	quizService := quiz.NewService(registry, extract.PDFExtractor{}, embedder, retrievalService, mcqGenerator, quiz.Options{
		ChunkSize:            cfg.ChunkSize,
		ChunkOverlap:         cfg.ChunkOverlap,
		RetrievalTopK:        cfg.RetrievalTopK,
		MinQuestions:         cfg.MinQuestions,
		MaxQuestions:         cfg.MaxQuestions,
		MaxTransportRetries:  cfg.MaxTransportRetries,
		RetryInitialInterval: cfg.RetryInitialInterval,
		EmbedTimeout:         cfg.EmbedTimeout,
		GenerateTimeout:      cfg.GenerateTimeout,
	})
	quizHandler := quiz.NewHandler(quizService)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	http.Handle("GET /api/v1/courses", middleware.CorrelationID(enableCORS(courseHandler.List)))
	http.Handle("GET /api/v1/courses/{code}", middleware.CorrelationID(enableCORS(courseHandler.Get)))
	http.Handle("POST /api/v1/generate-mcqs", middleware.CorrelationID(enableCORS(quizHandler.Generate)))
	http.Handle("POST /api/v1/courses/{code}/rebuild", middleware.CorrelationID(enableCORS(quizHandler.Rebuild)))

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	slog.Info("server starting", "port", cfg.ServerPort, "course_dir", cfg.CoursePDFDir)
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
