package store

import (
	"context"

	"github.com/hpungsan/shelf/internal/db"
)

// ConfigValue is the answer to a config lookup.
type ConfigValue struct {
	Value string
	Found bool
}

// GetConfig reads one config entry.
func (q *Queue) GetConfig(name string) *Future[ConfigValue] {
	return Submit(q, "get_config", false, func(ctx context.Context, dq db.Querier) (ConfigValue, error) {
		value, found, err := db.GetConfig(ctx, dq, name)
		return ConfigValue{Value: value, Found: found}, err
	})
}

// SetConfig writes one config entry.
func (q *Queue) SetConfig(name, value string) *Future[struct{}] {
	return Submit(q, "set_config", true, func(ctx context.Context, dq db.Querier) (struct{}, error) {
		return struct{}{}, db.SetConfig(ctx, dq, name, value)
	})
}

// CountManaged counts managed records.
func (q *Queue) CountManaged() *Future[int] {
	return Submit(q, "count_managed", false, func(ctx context.Context, dq db.Querier) (int, error) {
		return db.CountManaged(ctx, dq)
	})
}

// AllManaged snapshots every managed record.
func (q *Queue) AllManaged() *Future[map[string]int64] {
	return Submit(q, "all_managed", false, func(ctx context.Context, dq db.Querier) (map[string]int64, error) {
		return db.AllManaged(ctx, dq)
	})
}

// ListManaged reads one page of managed records ordered by key.
func (q *Queue) ListManaged(limit, offset int) *Future[[]db.ManagedGame] {
	return Submit(q, "list_managed", false, func(ctx context.Context, dq db.Querier) ([]db.ManagedGame, error) {
		return db.ListManaged(ctx, dq, limit, offset)
	})
}

// AddManaged records key → appID, replacing the app id of an existing key.
func (q *Queue) AddManaged(key string, appID int64) *Future[struct{}] {
	return Submit(q, "add_managed", true, func(ctx context.Context, dq db.Querier) (struct{}, error) {
		return struct{}{}, db.UpsertManaged(ctx, dq, key, appID)
	})
}

// RemoveManaged deletes a managed record. The result reports whether it existed.
func (q *Queue) RemoveManaged(key string) *Future[bool] {
	return Submit(q, "remove_managed", true, func(ctx context.Context, dq db.Querier) (bool, error) {
		return db.DeleteManaged(ctx, dq, key)
	})
}
