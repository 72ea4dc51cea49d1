package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/shelf/internal/errors"
	"github.com/hpungsan/shelf/internal/library"
)

// GetConfigInput contains parameters for the GetConfig operation.
type GetConfigInput struct {
	Name string // required
}

// GetConfigOutput contains the result of the GetConfig operation.
type GetConfigOutput struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// GetConfig reads a stored config entry. A missing entry is not an error.
func GetConfig(ctx context.Context, eng *library.Engine, input GetConfigInput) (*GetConfigOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("name is required")
	}

	v, err := eng.GetConfig(ctx, name)
	if err != nil {
		return nil, normalize(err)
	}
	return &GetConfigOutput{Name: name, Value: v.Value, Found: v.Found}, nil
}

// SetConfigInput contains parameters for the SetConfig operation.
type SetConfigInput struct {
	Name  string // required
	Value string
}

// SetConfigOutput contains the result of the SetConfig operation.
type SetConfigOutput struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SetConfig upserts a stored config entry.
func SetConfig(ctx context.Context, eng *library.Engine, input SetConfigInput) (*SetConfigOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("name is required")
	}

	if err := eng.SetConfig(ctx, name, input.Value); err != nil {
		return nil, normalize(err)
	}
	return &SetConfigOutput{Name: name, Value: input.Value}, nil
}
