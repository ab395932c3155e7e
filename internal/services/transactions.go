// Package services is the typed surface the CLI and worker talk to. Reads
// go through the cache store; successful mutations report their category to
// the invalidation coordinator. Validation failures never reach the wire.
package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"fintrack/internal/api"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/invalidation"
	"fintrack/internal/log"
)

// TransactionFilters narrows a transaction listing. Zero values are omitted
// from the query string.
type TransactionFilters struct {
	Page     int
	PerPage  int
	Type     core.TransactionType
	Category core.ExpenseCategory
	Search   string
}

func (f TransactionFilters) query() url.Values {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(f.PerPage))
	}
	if f.Type != "" {
		q.Set("transaction_type", string(f.Type))
	}
	if f.Category != "" {
		q.Set("category", string(f.Category))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

// CategorySuggestion is the server's guess for an expense description.
type CategorySuggestion struct {
	Description string               `json:"description"`
	Category    core.ExpenseCategory `json:"suggested_category"`
	DisplayName string               `json:"category_display_name"`
	Confidence  string               `json:"confidence"`
}

type Transactions struct {
	api    *api.Client
	store  *cache.Store
	coord  *invalidation.Coordinator
	logger *log.Logger
}

func NewTransactions(apiClient *api.Client, store *cache.Store, coord *invalidation.Coordinator, logger *log.Logger) *Transactions {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentApp)
	}
	return &Transactions{api: apiClient, store: store, coord: coord, logger: logger}
}

// List returns one page of transactions, served from cache when available.
func (s *Transactions) List(ctx context.Context, filters TransactionFilters) (core.TransactionList, error) {
	key := cache.TransactionsQueryKey(filters.query())
	return cache.FetchAs(ctx, s.store, key, func(ctx context.Context) (core.TransactionList, error) {
		var out core.TransactionList
		err := s.api.Get(ctx, key.String(), &out)
		return out, err
	})
}

// Create validates and submits a new transaction. The fan-out runs only
// after the server accepted it.
func (s *Transactions) Create(ctx context.Context, draft core.TransactionDraft) (core.Transaction, error) {
	var created core.Transaction
	if err := draft.Validate(); err != nil {
		return created, err
	}

	if err := s.api.Post(ctx, "/transactions", draft, &created); err != nil {
		return created, err
	}

	s.logger.InfoContext(ctx, "transaction created",
		log.FieldTxID, created.ID.String(),
		log.FieldTxType, string(created.Type),
		log.FieldAmount, created.Amount.String())

	if err := s.coord.OnMutation(ctx, invalidation.TransactionChanged); err != nil {
		return created, fmt.Errorf("invalidate after create: %w", err)
	}
	return created, nil
}

func (s *Transactions) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.api.Delete(ctx, "/transactions/"+id.String(), nil); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "transaction deleted", log.FieldTxID, id.String())

	if err := s.coord.OnMutation(ctx, invalidation.TransactionChanged); err != nil {
		return fmt.Errorf("invalidate after delete: %w", err)
	}
	return nil
}

type bulkCreateRequest struct {
	Transactions []core.OCRItem `json:"transactions"`
	Source       string         `json:"source"`
}

// BulkCreate imports reviewed OCR items in one request. Partial failures
// are reported in the result; any created transaction triggers the fan-out.
func (s *Transactions) BulkCreate(ctx context.Context, items []core.OCRItem) (core.BulkCreateResult, error) {
	var result core.BulkCreateResult
	if len(items) == 0 {
		return result, fmt.Errorf("no transactions to import")
	}

	req := bulkCreateRequest{Transactions: items, Source: "ocr"}
	if err := s.api.Post(ctx, "/transactions/bulk", req, &result); err != nil {
		return result, err
	}

	s.logger.InfoContext(ctx, "bulk import finished",
		log.FieldKeyCount, result.CreatedCount)

	if result.CreatedCount > 0 {
		if err := s.coord.OnMutation(ctx, invalidation.TransactionChanged); err != nil {
			return result, fmt.Errorf("invalidate after bulk create: %w", err)
		}
	}
	return result, nil
}

// Categorize asks the server for a category suggestion. Read-only: no cache
// interaction, no invalidation.
func (s *Transactions) Categorize(ctx context.Context, description string, amount string) (CategorySuggestion, error) {
	var out CategorySuggestion
	q := url.Values{}
	q.Set("description", description)
	if amount != "" {
		q.Set("amount", amount)
	}
	err := s.api.Post(ctx, "/transactions/categorize?"+q.Encode(), nil, &out)
	return out, err
}
