package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"invoice-parser/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrLineItems marks a line_items value that was not valid JSON. The handler
// maps it to its own fixed response message.
var ErrLineItems = errors.New("failed to parse line items")

type textExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}

type fieldExtractor interface {
	ExtractFields(ctx context.Context, invoiceText string) (InvoiceFields, error)
}

// InvoiceService runs the full pipeline for one uploaded document:
// text extraction, structured extraction, then assembly into a validated
// InvoiceData. It holds no per-request state.
type InvoiceService struct {
	ocr    textExtractor
	llm    fieldExtractor
	logger *zap.Logger
}

func NewInvoiceService(ocr textExtractor, llm fieldExtractor, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{
		ocr:    ocr,
		llm:    llm,
		logger: logger,
	}
}

// ParseInvoice processes one document and returns the structured result.
// Either the full record comes back or an error; there are no partial
// results and no retries.
func (s *InvoiceService) ParseInvoice(ctx context.Context, data []byte, contentType string) (*models.InvoiceData, error) {
	rid := uuid.New().String()
	start := time.Now()

	text, err := s.ocr.ExtractText(ctx, data, contentType)
	if err != nil {
		return nil, err
	}

	fields, err := s.llm.ExtractFields(ctx, text)
	if err != nil {
		return nil, err
	}

	invoice, err := assembleInvoice(fields)
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice parsed",
		zap.String("req_id", rid),
		zap.String("content_type", contentType),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("vendor", invoice.VendorName),
		zap.Int("line_items", len(invoice.LineItems)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	return invoice, nil
}

// assembleInvoice validates the raw extraction output and builds the final
// record. Every field is required; any shape violation fails the whole
// request.
func assembleInvoice(fields InvoiceFields) (*models.InvoiceData, error) {
	lineItems, err := parseLineItems(fields.LineItems)
	if err != nil {
		return nil, err
	}

	total, err := coerceRawNumber(fields.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid total_amount: %w", err)
	}

	required := map[string]string{
		"invoice_number": fields.InvoiceNumber,
		"date":           fields.Date,
		"vendor_name":    fields.VendorName,
		"currency":       fields.Currency,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("missing required field %s", name)
		}
	}

	return &models.InvoiceData{
		InvoiceNumber: fields.InvoiceNumber,
		Date:          fields.Date,
		VendorName:    fields.VendorName,
		TotalAmount:   total,
		Currency:      fields.Currency,
		LineItems:     lineItems,
	}, nil
}

// lineItemWire mirrors the documented JSON shape of one line item. Numeric
// fields stay untyped so quoted numbers can still be coerced.
type lineItemWire struct {
	Description *string `json:"description"`
	Quantity    any     `json:"quantity"`
	UnitPrice   any     `json:"unit_price"`
	Total       any     `json:"total"`
}

// parseLineItems decodes the line_items value. The model returns it either
// as a JSON-encoded string or, occasionally, as an inline array; both are
// accepted. An absent or null value yields an empty list. A value that is
// not valid JSON is an ErrLineItems; a well-formed element of the wrong
// shape is an ordinary processing error.
func parseLineItems(raw json.RawMessage) ([]models.LineItem, error) {
	payload := []byte(strings.TrimSpace(string(raw)))
	if len(payload) == 0 || string(payload) == "null" {
		return []models.LineItem{}, nil
	}

	// String-typed: unwrap, then parse the embedded document. Only the
	// truly empty string is treated as no line items; a whitespace-only
	// string is not a JSON document and fails like any other garbage.
	if payload[0] == '"' {
		var embedded string
		if err := json.Unmarshal(payload, &embedded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLineItems, err)
		}
		if embedded == "" {
			return []models.LineItem{}, nil
		}
		payload = []byte(embedded)
	}

	var wire []lineItemWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, fmt.Errorf("%w: %v", ErrLineItems, err)
		}
		return nil, fmt.Errorf("malformed line items: %w", err)
	}

	items := make([]models.LineItem, 0, len(wire))
	for i, w := range wire {
		if w.Description == nil {
			return nil, fmt.Errorf("line item %d: missing description", i)
		}
		quantity, err := coerceNumber(w.Quantity)
		if err != nil {
			return nil, fmt.Errorf("line item %d: invalid quantity: %w", i, err)
		}
		unitPrice, err := coerceNumber(w.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("line item %d: invalid unit_price: %w", i, err)
		}
		total, err := coerceNumber(w.Total)
		if err != nil {
			return nil, fmt.Errorf("line item %d: invalid total: %w", i, err)
		}
		items = append(items, models.LineItem{
			Description: *w.Description,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			Total:       total,
		})
	}

	return items, nil
}

// coerceRawNumber coerces a raw JSON value to float64.
func coerceRawNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("value is missing")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return coerceNumber(v)
}

// coerceNumber accepts JSON numbers and numeric strings; everything else is
// a shape violation.
func coerceNumber(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("value is missing")
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
