package audit

import (
	"context"
	"fmt"
)

// Reader is implemented by the Postgres store and by the in-memory review store.
type Reader interface {
	Count(ctx context.Context, companyID string, filter Filter) (int, error)
	List(ctx context.Context, companyID string, filter Filter, includeDetails bool, limit, offset int) ([]Entry, error)
}

type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

type Service struct {
	reader Reader
}

func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

func (s *Service) Query(ctx context.Context, companyID string, filter Filter, includeDetails bool, limit, offset int) (Page, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return Page{}, fmt.Errorf("audit query: %w", ErrInvalidRange)
	}
	total, err := s.reader.Count(ctx, companyID, filter)
	if err != nil {
		return Page{}, fmt.Errorf("audit count: %w", err)
	}
	entries, err := s.reader.List(ctx, companyID, filter, includeDetails, limit, offset)
	if err != nil {
		return Page{}, fmt.Errorf("audit list: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return Page{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// Export walks every matching entry in pages for spreadsheet export.
func (s *Service) Export(ctx context.Context, companyID string, filter Filter, fn func(Entry) error) error {
	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		entries, err := s.reader.List(ctx, companyID, filter, false, pageSize, offset)
		if err != nil {
			return fmt.Errorf("audit export: %w", err)
		}
		for _, e := range entries {
			if err := fn(e); err != nil {
				return err
			}
		}
		if len(entries) < pageSize {
			return nil
		}
	}
}
