package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/shelf/internal/errors"
	"github.com/hpungsan/shelf/internal/library"
)

// SyncOutput contains the result of the Sync operation.
type SyncOutput struct {
	Success      bool   `json:"success"`
	GenerationID string `json:"generation_id,omitempty"`
	Games        int    `json:"games"`
	Unmanaged    int    `json:"unmanaged"`
	Removed      int    `json:"removed"`
	Error        string `json:"error,omitempty"`
}

// Sync runs a library scan. A failed scan is reported through Success, not
// as an error; the cause is logged and surfaced as a short code.
func Sync(ctx context.Context, eng *library.Engine, logger *zap.Logger) (*SyncOutput, error) {
	gen, err := eng.Sync(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		code := string(errors.ErrInternal)
		if se, ok := errors.As(err); ok {
			code = string(se.Code)
		}
		logger.Warn("sync failed", zap.Error(err))
		return &SyncOutput{Success: false, Error: code}, nil
	}

	return &SyncOutput{
		Success:      true,
		GenerationID: gen.ID,
		Games:        len(gen.Games),
		Unmanaged:    len(gen.Unmanaged),
		Removed:      len(gen.Removed),
	}, nil
}

// StatusOutput contains the result of the Status operation.
type StatusOutput struct {
	*library.Status
}

// Status reports scan, library and queue state.
func Status(ctx context.Context, eng *library.Engine) (*StatusOutput, error) {
	s, err := eng.Status(ctx)
	if err != nil {
		return nil, normalize(err)
	}
	return &StatusOutput{Status: s}, nil
}

// CountOutput contains the result of a count operation.
type CountOutput struct {
	Count int `json:"count"`
}

// GameCount counts games in the current scan, or managed records before the first scan.
func GameCount(ctx context.Context, eng *library.Engine) (*CountOutput, error) {
	n, err := eng.GameCount(ctx)
	if err != nil {
		return nil, normalize(err)
	}
	return &CountOutput{Count: n}, nil
}
