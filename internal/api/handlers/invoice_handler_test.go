package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"invoice-parser/internal/api"
	"invoice-parser/internal/api/handlers"
	"invoice-parser/internal/models"
	"invoice-parser/internal/service"
	"invoice-parser/pkg/config"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubParser struct {
	invoice *models.InvoiceData
	err     error

	calls       int
	contentType string
	size        int
}

func (s *stubParser) ParseInvoice(_ context.Context, data []byte, contentType string) (*models.InvoiceData, error) {
	s.calls++
	s.contentType = contentType
	s.size = len(data)
	return s.invoice, s.err
}

func newTestApp(parser handlers.InvoiceParser) *fiber.App {
	handler := handlers.NewInvoiceHandler(parser, zap.NewNop())
	return api.SetupRouter(handler, &config.ServerConfig{
		Port:         "8080",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		BodyLimit:    2 * config.MaxFileSize,
	})
}

func uploadRequest(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/parse-invoice", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeDetail(t *testing.T, resp *http.Response) string {
	t.Helper()

	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Detail
}

func TestHealthCheck(t *testing.T) {
	parser := &stubParser{}
	app := newTestApp(parser)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"healthy"}`, string(raw))
	assert.Zero(t, parser.calls)
}

func TestParseInvoiceRejectsInvalidFileType(t *testing.T) {
	parser := &stubParser{}
	app := newTestApp(parser)

	resp, err := app.Test(uploadRequest(t, "test.txt", "text/plain", []byte("fake image data")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	detail := decodeDetail(t, resp)
	assert.Contains(t, detail, "Invalid file type")
	assert.Contains(t, detail, "text/plain")
	assert.Zero(t, parser.calls)
}

func TestParseInvoiceRejectsEmptyFile(t *testing.T) {
	parser := &stubParser{}
	app := newTestApp(parser)

	resp, err := app.Test(uploadRequest(t, "test.png", "image/png", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeDetail(t, resp), "empty")
	assert.Zero(t, parser.calls)
}

func TestParseInvoiceRejectsOversizedFile(t *testing.T) {
	parser := &stubParser{}
	app := newTestApp(parser)

	oversized := bytes.Repeat([]byte{0xAB}, config.MaxFileSize+1)
	resp, err := app.Test(uploadRequest(t, "big.png", "image/png", oversized), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeDetail(t, resp), "10 MB limit")
	assert.Zero(t, parser.calls)
}

func TestParseInvoiceSuccess(t *testing.T) {
	parser := &stubParser{
		invoice: &models.InvoiceData{
			InvoiceNumber: "INV-2024-001",
			Date:          "2025-07-25",
			VendorName:    "Acme GmbH",
			TotalAmount:   14949.38,
			Currency:      "EUR",
			LineItems: []models.LineItem{
				{Description: "Laptop Stand", Quantity: 2, UnitPrice: 49.99, Total: 99.98},
			},
		},
	}
	app := newTestApp(parser)

	resp, err := app.Test(uploadRequest(t, "invoice.png", "image/png", []byte("png bytes")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, parser.calls)
	assert.Equal(t, "image/png", parser.contentType)
	assert.Equal(t, len("png bytes"), parser.size)

	var invoice models.InvoiceData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&invoice))
	assert.Equal(t, "INV-2024-001", invoice.InvoiceNumber)
	assert.Equal(t, 14949.38, invoice.TotalAmount)
	require.Len(t, invoice.LineItems, 1)
	assert.Equal(t, "Laptop Stand", invoice.LineItems[0].Description)
}

func TestParseInvoiceAcceptsPDF(t *testing.T) {
	parser := &stubParser{invoice: &models.InvoiceData{
		InvoiceNumber: "A-1", Date: "2025-01-02", VendorName: "V", TotalAmount: 1, Currency: "EUR",
		LineItems: []models.LineItem{},
	}}
	app := newTestApp(parser)

	resp, err := app.Test(uploadRequest(t, "invoice.pdf", "application/pdf", []byte("%PDF-1.7")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", parser.contentType)
}

func TestParseInvoiceLineItemFailure(t *testing.T) {
	parser := &stubParser{err: fmt.Errorf("%w: unexpected token", service.ErrLineItems)}
	app := newTestApp(parser)

	resp, err := app.Test(uploadRequest(t, "invoice.png", "image/png", []byte("png bytes")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to parse line items from invoice.", decodeDetail(t, resp))
}

func TestParseInvoiceProcessingFailure(t *testing.T) {
	parser := &stubParser{err: errors.New("no choices in vision response")}
	app := newTestApp(parser)

	resp, err := app.Test(uploadRequest(t, "invoice.png", "image/png", []byte("png bytes")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to process invoice: no choices in vision response", decodeDetail(t, resp))
}
