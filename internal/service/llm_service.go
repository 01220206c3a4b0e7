package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"invoice-parser/pkg/config"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

// visionMaxTokens caps the transcription output of the vision call.
const visionMaxTokens = 2000

// transcribePrompt is the fixed instruction for the image path.
const transcribePrompt = "Extract all text from this invoice image exactly as it appears. " +
	"Include all numbers, dates, names, addresses, and line items."

// extractionInstruction describes every output field of the structured
// extraction call. The document may be in German or English; all numeric
// values must be converted from German format (e.g. 14.949,38) to standard
// format (14949.38).
const extractionInstruction = `You extract structured information from an invoice or order confirmation document.
The document may be in German or English. Convert all numeric values from German format (e.g. 14.949,38) to standard format (14949.38).

Think step by step first, then produce a single JSON object with exactly these keys:
- "reasoning": your step-by-step reasoning about the document (string)
- "invoice_number": the invoice, order, or document number (e.g. Auftrags-Nr., Rechnungsnummer)
- "date": document date in YYYY-MM-DD format; convert from any format like "25. Juli 2025" to "2025-07-25"
- "vendor_name": name of the vendor, supplier, or issuing company
- "total_amount": final total amount (Gesamtbetrag) as a number; convert German format like 14.949,38 to 14949.38
- "currency": currency code, e.g. EUR, USD
- "line_items": JSON array of line items, each with "description" (Bezeichnung), "quantity" (Menge as number), "unit_price" (Einzelpreis as number), "total" (Gesamt as number); convert German number format to standard decimals

Return only the JSON object, with no text before or after it.`

// InvoiceFields is the raw output of the structured extraction call.
// TotalAmount and LineItems stay raw: the model occasionally returns them as
// quoted strings and the assembly step owns coercion and validation.
type InvoiceFields struct {
	Reasoning     string          `json:"reasoning"`
	InvoiceNumber string          `json:"invoice_number"`
	Date          string          `json:"date"`
	VendorName    string          `json:"vendor_name"`
	TotalAmount   json.RawMessage `json:"total_amount"`
	Currency      string          `json:"currency"`
	LineItems     json.RawMessage `json:"line_items"`
}

// LLMService wraps the chat-completion client used for both the vision
// transcription and the structured extraction calls. It is built once at
// startup and reused read-only by every request.
type LLMService struct {
	client openai.Client
	model  openai.ChatModel
	logger *zap.Logger
}

func NewLLMService(cfg *config.OpenAIConfig, logger *zap.Logger) *LLMService {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &LLMService{
		client: openai.NewClient(opts...),
		model:  openai.ChatModel(cfg.Model),
		logger: logger,
	}
}

// ExtractTextFromImage transcribes an invoice image via the vision-capable
// chat model. The image travels inline as a base64 data URL.
func (s *LLMService) ExtractTextFromImage(ctx context.Context, image []byte) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	encoded := base64.StdEncoding.EncodeToString(image)

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(transcribePrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: "data:image/png;base64," + encoded,
				}),
			}),
		},
		MaxTokens: openai.Int(visionMaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in vision response")
	}

	content := resp.Choices[0].Message.Content

	s.logger.Info("image transcribed",
		zap.String("req_id", rid),
		zap.String("model", string(s.model)),
		zap.Int("image_bytes", len(image)),
		zap.Int("text_length", len(content)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	return content, nil
}

// ExtractFields runs the structured extraction call on previously extracted
// invoice text. The instruction asks for explicit step-by-step reasoning
// before the final fields; complex multi-line-item documents extract better
// that way. Malformed field values pass through untouched and are caught
// during assembly.
func (s *LLMService) ExtractFields(ctx context.Context, invoiceText string) (InvoiceFields, error) {
	rid := uuid.New().String()
	start := time.Now()

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractionInstruction),
			openai.UserMessage("Invoice text:\n\n" + invoiceText),
		},
	})
	if err != nil {
		return InvoiceFields{}, fmt.Errorf("extraction request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return InvoiceFields{}, fmt.Errorf("no choices in extraction response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)

	fields, err := parseInvoiceFields(content)
	if err != nil {
		return InvoiceFields{}, err
	}

	s.logger.Info("fields extracted",
		zap.String("req_id", rid),
		zap.String("model", string(s.model)),
		zap.String("invoice_number", fields.InvoiceNumber),
		zap.String("date", fields.Date),
		zap.String("vendor", fields.VendorName),
		zap.String("currency", fields.Currency),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	return fields, nil
}

// parseInvoiceFields locates the JSON object in the model output and
// unmarshals it. The model sometimes wraps the object in markdown fences or
// surrounds it with prose; fences come off first, then the object bounds.
func parseInvoiceFields(content string) (InvoiceFields, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	jsonStart := strings.Index(content, "{")
	jsonEnd := strings.LastIndex(content, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd < jsonStart {
		return InvoiceFields{}, fmt.Errorf("no JSON object in extraction response: %s", content)
	}

	jsonStr := content[jsonStart : jsonEnd+1]

	var fields InvoiceFields
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		return InvoiceFields{}, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	return fields, nil
}
