package handlers_test

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"

	"invoice-parser/internal/api"
	"invoice-parser/internal/api/handlers"
	"invoice-parser/internal/models"
	"invoice-parser/internal/service"
	"invoice-parser/pkg/config"
	"invoice-parser/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseInvoiceLive runs the full pipeline against the real model
// endpoint. It needs an API key and a sample invoice image.
func TestParseInvoiceLive(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("skipping live test: OPENAI_API_KEY not set")
	}

	sample, err := os.ReadFile("../../../samples/invoice.png")
	if err != nil {
		t.Skipf("skipping live test: sample invoice not available: %v", err)
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	appLogger, err := logger.New("error")
	require.NoError(t, err)

	llmService := service.NewLLMService(&cfg.OpenAI, appLogger)
	ocrService := service.NewOCRService(llmService, appLogger)
	invoiceService := service.NewInvoiceService(ocrService, llmService, appLogger)

	app := api.SetupRouter(handlers.NewInvoiceHandler(invoiceService, appLogger), &cfg.Server)

	resp, err := app.Test(uploadRequest(t, "invoice.png", "image/png", sample), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var invoice models.InvoiceData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&invoice))

	assert.NotEmpty(t, invoice.InvoiceNumber)
	assert.NotEmpty(t, invoice.Date)
	assert.NotEmpty(t, invoice.VendorName)
	assert.NotEmpty(t, invoice.Currency)
	assert.Greater(t, invoice.TotalAmount, 0.0)
}
