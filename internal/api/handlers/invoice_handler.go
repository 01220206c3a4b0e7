package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"invoice-parser/internal/dto"
	"invoice-parser/internal/models"
	"invoice-parser/internal/service"
	"invoice-parser/pkg/config"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// InvoiceParser is what the handler needs from the pipeline.
type InvoiceParser interface {
	ParseInvoice(ctx context.Context, data []byte, contentType string) (*models.InvoiceData, error)
}

type InvoiceHandler struct {
	parser InvoiceParser
	logger *zap.Logger
}

func NewInvoiceHandler(parser InvoiceParser, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		parser: parser,
		logger: logger,
	}
}

// HealthCheck godoc
// @Summary Health check
// @Description Check if the API server is running
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /health [get]
func (h *InvoiceHandler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(dto.HealthResponse{Status: "healthy"})
}

// ParseInvoice godoc
// @Summary Parse an invoice document
// @Description Accept an invoice file (PNG or PDF) and return extracted structured data
// @Tags invoices
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Invoice document (PNG or PDF, max 10 MB)"
// @Success 200 {object} models.InvoiceData
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /parse-invoice [post]
func (h *InvoiceHandler) ParseInvoice(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Detail: "Uploaded file is empty.",
		})
	}

	contentType := file.Header.Get("Content-Type")
	if contentType != service.ContentTypePNG && contentType != service.ContentTypePDF {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Detail: fmt.Sprintf("Invalid file type: %s. Accepted: PNG and PDF.", contentType),
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Detail: "Uploaded file is empty.",
		})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		h.logger.Error("failed to read upload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Detail: fmt.Sprintf("Failed to process invoice: %s", err.Error()),
		})
	}

	if len(data) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Detail: "Uploaded file is empty.",
		})
	}

	if len(data) > config.MaxFileSize {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Detail: "File size exceeds the 10 MB limit.",
		})
	}

	invoice, err := h.parser.ParseInvoice(c.Context(), data, contentType)
	if err != nil {
		h.logger.Error("failed to parse invoice",
			zap.String("content_type", contentType),
			zap.Int("size", len(data)),
			zap.Error(err),
		)
		if errors.Is(err, service.ErrLineItems) {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Detail: "Failed to parse line items from invoice.",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Detail: fmt.Sprintf("Failed to process invoice: %s", err.Error()),
		})
	}

	return c.JSON(invoice)
}
