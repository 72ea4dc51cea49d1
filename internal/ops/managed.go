package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/shelf/internal/db"
	"github.com/hpungsan/shelf/internal/errors"
	"github.com/hpungsan/shelf/internal/library"
)

// ManagedListOutput contains a page of managed records.
type ManagedListOutput struct {
	Items      []db.ManagedGame `json:"items"`
	Pagination Pagination       `json:"pagination"`
}

// CountManaged counts managed records.
func CountManaged(ctx context.Context, eng *library.Engine) (*CountOutput, error) {
	n, err := eng.CountManaged(ctx)
	if err != nil {
		return nil, normalize(err)
	}
	return &CountOutput{Count: n}, nil
}

// ListManaged returns one page of managed records ordered by key.
func ListManaged(ctx context.Context, eng *library.Engine, input PageInput) (*ManagedListOutput, error) {
	p, err := eng.Managed(ctx, input.Page)
	if err != nil {
		return nil, normalize(err)
	}

	items := p.Items
	if items == nil {
		items = []db.ManagedGame{}
	}
	return &ManagedListOutput{Items: items, Pagination: paginationOf(p)}, nil
}

// AddManagedInput contains parameters for the AddManaged operation.
type AddManagedInput struct {
	Key   string // required
	AppID int64  // required, non-zero
}

// AddManaged records an imported game. Re-adding a key replaces its app id.
func AddManaged(ctx context.Context, eng *library.Engine, input AddManagedInput) (*db.ManagedGame, error) {
	key := strings.TrimSpace(input.Key)
	if key == "" {
		return nil, errors.NewInvalidRequest("key is required")
	}
	if input.AppID == 0 {
		return nil, errors.NewInvalidRequest("app_id is required")
	}

	if err := eng.Add(ctx, key, input.AppID); err != nil {
		return nil, normalize(err)
	}
	return &db.ManagedGame{Key: key, AppID: input.AppID}, nil
}

// RemoveManagedInput contains parameters for the RemoveManaged operation.
type RemoveManagedInput struct {
	Key string // required
}

// RemoveManagedOutput contains the result of the RemoveManaged operation.
type RemoveManagedOutput struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed"`
}

// RemoveManaged deletes a managed record. An unknown key reports removed=false.
func RemoveManaged(ctx context.Context, eng *library.Engine, input RemoveManagedInput) (*RemoveManagedOutput, error) {
	key := strings.TrimSpace(input.Key)
	if key == "" {
		return nil, errors.NewInvalidRequest("key is required")
	}

	removed, err := eng.Remove(ctx, key)
	if err != nil {
		return nil, normalize(err)
	}
	return &RemoveManagedOutput{Key: key, Removed: removed}, nil
}
