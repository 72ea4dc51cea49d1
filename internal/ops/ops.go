// Package ops holds the operations shared by the CLI and the MCP server.
// Each operation takes an Input struct and returns an Output struct that is
// serialized as-is for JSON consumers.
package ops

import (
	"github.com/hpungsan/shelf/internal/errors"
	"github.com/hpungsan/shelf/internal/library"
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	Total    int  `json:"total"`
	HasMore  bool `json:"has_more"`
}

// PageInput selects one page of a list. Pages start at 0.
type PageInput struct {
	Page int
}

func paginationOf[T any](p library.Page[T]) Pagination {
	return Pagination{
		Page:     p.Page,
		PageSize: p.PageSize,
		Total:    p.Total,
		HasMore:  p.HasMore,
	}
}

// normalize maps any error that is not already a ShelfError to INTERNAL.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.NewInternal(err)
}
