package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

const (
	ContentTypePNG = "image/png"
	ContentTypePDF = "application/pdf"
)

// visionTranscriber is the slice of LLMService the text extractor needs.
type visionTranscriber interface {
	ExtractTextFromImage(ctx context.Context, image []byte) (string, error)
}

// OCRService converts raw document bytes into plain text.
// PDFs are read directly through go-fitz; images go through the vision model.
// The declared content type decides the path, the bytes are never sniffed.
type OCRService struct {
	vision visionTranscriber
	logger *zap.Logger
}

func NewOCRService(vision visionTranscriber, logger *zap.Logger) *OCRService {
	return &OCRService{
		vision: vision,
		logger: logger,
	}
}

// ExtractText returns the plain text of the document, trimmed of
// surrounding whitespace.
func (s *OCRService) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	var text string
	var err error

	switch contentType {
	case ContentTypePDF:
		text, err = s.extractTextFromPDF(data)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from PDF: %w", err)
		}
	case ContentTypePNG:
		text, err = s.vision.ExtractTextFromImage(ctx, data)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from image: %w", err)
		}
	default:
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}

	text = strings.TrimSpace(text)

	s.logger.Info("text extraction completed",
		zap.String("content_type", contentType),
		zap.Int("document_bytes", len(data)),
		zap.Int("text_length", len(text)),
	)

	return text, nil
}

// extractTextFromPDF concatenates the text layer of every page, joined by
// newlines. Pages without a text layer contribute nothing; there is no OCR
// fallback for scanned PDFs.
func (s *OCRService) extractTextFromPDF(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var textBuilder strings.Builder

	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", i+1, err)
		}
		textBuilder.WriteString(pageText)
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), nil
}
