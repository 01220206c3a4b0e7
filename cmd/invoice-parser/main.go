package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"invoice-parser/internal/api"
	"invoice-parser/internal/api/handlers"
	"invoice-parser/internal/service"
	"invoice-parser/pkg/config"
	"invoice-parser/pkg/logger"

	"go.uber.org/zap"
)

// @title Invoice Parser API
// @version 1.0
// @description Parse invoice documents and extract structured data

// @host localhost:8080
// @BasePath /

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting invoice parser service")

	// The model client and pipeline are built once and reused read-only
	// across all requests.
	llmService := service.NewLLMService(&cfg.OpenAI, appLogger)
	ocrService := service.NewOCRService(llmService, appLogger)
	invoiceService := service.NewInvoiceService(ocrService, llmService, appLogger)

	invoiceHandler := handlers.NewInvoiceHandler(invoiceService, appLogger)

	app := api.SetupRouter(invoiceHandler, &cfg.Server)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
