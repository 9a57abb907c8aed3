package service

import (
	"context"
	"fmt"
	"strings"

	"clinic-chat-go/internal/model"
	"clinic-chat-go/pkg/es"
)

const searchSize = 20

// TurnSearcher 由 *es.Client 实现。
type TurnSearcher interface {
	SearchTurns(ctx context.Context, q es.SearchQuery) ([]model.ChatSearchHit, error)
}

// SearchService 在用户自己的聊天记录中做全文检索。
type SearchService interface {
	SearchTurns(ctx context.Context, ownerID, patientID uint, text string) ([]model.ChatSearchHit, error)
}

type searchService struct {
	searcher TurnSearcher
}

// NewSearchService 创建 SearchService。searcher 为 nil 时检索返回 ErrUnavailable。
func NewSearchService(searcher TurnSearcher) SearchService {
	return &searchService{searcher: searcher}
}

// SearchTurns patientID 为 0 时检索该用户的全部患者。
func (s *searchService) SearchTurns(ctx context.Context, ownerID, patientID uint, text string) ([]model.ChatSearchHit, error) {
	if s.searcher == nil {
		return nil, ErrUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("Query is required")
	}
	hits, err := s.searcher.SearchTurns(ctx, es.SearchQuery{OwnerID: ownerID, PatientID: patientID, Text: text, Size: searchSize})
	if err != nil {
		return nil, fmt.Errorf("search turns: %w", err)
	}
	return hits, nil
}
