package postgres

import (
	"context"
	"fmt"
	"strings"

	"finsaathi-ai-api/internal/domain/entity"
)

// ReferenceRepository 行情与理财计划
type ReferenceRepository struct {
	client *Client
}

func NewReferenceRepository(client *Client) *ReferenceRepository {
	return &ReferenceRepository{client: client}
}

func (r *ReferenceRepository) ListMarketQuotes(ctx context.Context, symbols []string) ([]*entity.MarketQuote, error) {
	ctx, span := tracer.Start(ctx, "postgres.ReferenceRepository.ListMarketQuotes")
	defer span.End()

	quotes := []*entity.MarketQuote{}
	if len(symbols) == 0 {
		return quotes, nil
	}

	db := getDB(ctx, r.client.db)
	if err := db.Where("symbol IN ?", symbols).Order("symbol").Find(&quotes).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list market quotes: %w", err)
	}
	return quotes, nil
}

func (r *ReferenceRepository) SearchSchemes(ctx context.Context, query, category string, limit int) ([]*entity.Scheme, error) {
	ctx, span := tracer.Start(ctx, "postgres.ReferenceRepository.SearchSchemes")
	defer span.End()

	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	db := getDB(ctx, r.client.db)
	q := db.Where("name ILIKE ? OR description ILIKE ? OR eligibility ILIKE ?", pattern, pattern, pattern)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var schemes []*entity.Scheme
	if err := q.Order("name").Find(&schemes).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search schemes: %w", err)
	}
	return schemes, nil
}

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
