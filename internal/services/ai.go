package services

import (
	"context"
	"fmt"
	"io"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

type aiQueryRequest struct {
	UserQuery           string `json:"user_query"`
	IncludeTransactions bool   `json:"include_transactions"`
	IncludeGoals        bool   `json:"include_goals"`
}

// AI wraps the server-side analysis endpoints. None of these touch the
// cache; importing extracted OCR items goes through Transactions.BulkCreate.
type AI struct {
	api    *api.Client
	logger *log.Logger
}

func NewAI(apiClient *api.Client, logger *log.Logger) *AI {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentApp)
	}
	return &AI{api: apiClient, logger: logger}
}

// Analyze requests a full spending analysis of the account.
func (s *AI) Analyze(ctx context.Context) (core.AIAnalysis, error) {
	var out core.AIAnalysis
	err := s.api.Post(ctx, "/ai/analyze", nil, &out)
	return out, err
}

// Query asks a free-form question about the user's finances.
func (s *AI) Query(ctx context.Context, question string) (core.AIQueryResult, error) {
	var out core.AIQueryResult
	if question == "" {
		return out, fmt.Errorf("empty question")
	}
	req := aiQueryRequest{UserQuery: question, IncludeTransactions: true, IncludeGoals: true}
	err := s.api.Post(ctx, "/ai/query", req, &out)
	return out, err
}

// ProcessOCR uploads a receipt image and returns the extracted transactions
// for review before import.
func (s *AI) ProcessOCR(ctx context.Context, filename string, file io.Reader) (core.OCRResult, error) {
	var out core.OCRResult
	if err := s.api.PostMultipart(ctx, "/ai/ocr/process", "file", filename, file, &out); err != nil {
		return out, err
	}
	s.logger.InfoContext(ctx, "receipt processed",
		log.FieldKeyCount, len(out.Transactions))
	return out, nil
}
