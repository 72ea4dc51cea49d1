package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/hpungsan/shelf/internal/errors"
)

// ManagedGame is a persisted pairing of an identity key to a numeric app id.
type ManagedGame struct {
	Key   string `json:"key"`
	AppID int64  `json:"app_id"`
}

// GetConfig returns the value stored under name. found is false when no row exists.
func GetConfig(ctx context.Context, q Querier, name string) (value string, found bool, err error) {
	err = q.QueryRowContext(ctx, "SELECT value FROM config WHERE name = ?", name).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewStore("get_config", err)
	}
	return value, true, nil
}

// SetConfig upserts a config entry.
func SetConfig(ctx context.Context, q Querier, name, value string) error {
	query := `
		INSERT INTO config (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`
	if _, err := q.ExecContext(ctx, query, name, value); err != nil {
		return errors.NewStore("set_config", err)
	}
	return nil
}

// CountManaged returns the number of managed records.
func CountManaged(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM managed_games").Scan(&n); err != nil {
		return 0, errors.NewStore("count_managed", err)
	}
	return n, nil
}

// AllManaged returns every managed record as a key → app id map.
func AllManaged(ctx context.Context, q Querier) (map[string]int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT key, app_id FROM managed_games")
	if err != nil {
		return nil, errors.NewStore("all_managed", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var key string
		var appID int64
		if err := rows.Scan(&key, &appID); err != nil {
			return nil, errors.NewStore("all_managed", err)
		}
		out[key] = appID
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStore("all_managed", err)
	}
	return out, nil
}

// ListManaged returns one page of managed records ordered by key.
func ListManaged(ctx context.Context, q Querier, limit, offset int) ([]ManagedGame, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT key, app_id FROM managed_games ORDER BY key LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, errors.NewStore("list_managed", err)
	}
	defer rows.Close()

	items := make([]ManagedGame, 0, limit)
	for rows.Next() {
		var m ManagedGame
		if err := rows.Scan(&m.Key, &m.AppID); err != nil {
			return nil, errors.NewStore("list_managed", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStore("list_managed", err)
	}
	return items, nil
}

// GetManaged retrieves a managed record by key.
func GetManaged(ctx context.Context, q Querier, key string) (*ManagedGame, error) {
	m := ManagedGame{Key: key}
	err := q.QueryRowContext(ctx, "SELECT app_id FROM managed_games WHERE key = ?", key).Scan(&m.AppID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound(key)
	}
	if err != nil {
		return nil, errors.NewStore("get_managed", err)
	}
	return &m, nil
}

// UpsertManaged records key → appID. An existing key has its app id replaced;
// an app id already owned by another key is a conflict.
func UpsertManaged(ctx context.Context, q Querier, key string, appID int64) error {
	query := `
		INSERT INTO managed_games (key, app_id) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET app_id = excluded.app_id
	`
	if _, err := q.ExecContext(ctx, query, key, appID); err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewConflict("app id is already managed under another key", map[string]any{
				"key":    key,
				"app_id": appID,
			})
		}
		return errors.NewStore("add_managed", err)
	}
	return nil
}

// DeleteManaged removes a managed record. removed is false when the key was unknown.
func DeleteManaged(ctx context.Context, q Querier, key string) (removed bool, err error) {
	res, err := q.ExecContext(ctx, "DELETE FROM managed_games WHERE key = ?", key)
	if err != nil {
		return false, errors.NewStore("remove_managed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewStore("remove_managed", err)
	}
	return n > 0, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
