package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/shelf/internal/errors"
	"github.com/hpungsan/shelf/internal/library"
	"github.com/hpungsan/shelf/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	eng    *library.Engine
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(eng *library.Engine, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{eng: eng, logger: logger.Named("mcp")}
}

// Request types for each tool

// ConfigGetRequest represents the arguments for config_get.
type ConfigGetRequest struct {
	Name string `json:"name"`
}

// ConfigSetRequest represents the arguments for config_set.
type ConfigSetRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PageRequest represents the arguments for the list tools.
type PageRequest struct {
	Page int `json:"page,omitempty"`
}

// ManagedAddRequest represents the arguments for managed_add.
type ManagedAddRequest struct {
	Key   string `json:"key"`
	AppID int64  `json:"app_id"`
}

// ManagedRemoveRequest represents the arguments for managed_remove.
type ManagedRemoveRequest struct {
	Key string `json:"key"`
}

// Handler implementations

// HandleSync handles the library_sync tool call.
func (h *Handlers) HandleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Sync(ctx, h.eng, h.logger)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleStatus handles the library_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Status(ctx, h.eng)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGameCount handles the library_count tool call.
func (h *Handlers) HandleGameCount(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.GameCount(ctx, h.eng)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleConfigGet handles the config_get tool call.
func (h *Handlers) HandleConfigGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConfigGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetConfig(ctx, h.eng, ops.GetConfigInput{Name: input.Name})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleConfigSet handles the config_set tool call.
func (h *Handlers) HandleConfigSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConfigSetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SetConfig(ctx, h.eng, ops.SetConfigInput{Name: input.Name, Value: input.Value})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleManagedList handles the managed_list tool call.
func (h *Handlers) HandleManagedList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListManaged(ctx, h.eng, ops.PageInput{Page: input.Page})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleManagedCount handles the managed_count tool call.
func (h *Handlers) HandleManagedCount(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.CountManaged(ctx, h.eng)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleManagedAdd handles the managed_add tool call.
func (h *Handlers) HandleManagedAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ManagedAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.AddManaged(ctx, h.eng, ops.AddManagedInput{Key: input.Key, AppID: input.AppID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleManagedRemove handles the managed_remove tool call.
func (h *Handlers) HandleManagedRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ManagedRemoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.RemoveManaged(ctx, h.eng, ops.RemoveManagedInput{Key: input.Key})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleUnmanagedList handles the unmanaged_list tool call.
func (h *Handlers) HandleUnmanagedList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListUnmanaged(h.eng, ops.PageInput{Page: input.Page})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRemovedList handles the removed_list tool call.
func (h *Handlers) HandleRemovedList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListRemoved(h.eng, ops.PageInput{Page: input.Page})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// errorResult converts an error into an MCP error result.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if shelfErr, ok := errors.As(err); ok {
		msg := shelfErr.Message
		if err != error(shelfErr) && shelfErr.Code != errors.ErrInternal {
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    shelfErr.Code,
			"message": msg,
			"status":  shelfErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if shelfErr.Code != errors.ErrInternal && shelfErr.Details != nil {
			errorObj["details"] = shelfErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates a successful MCP result with JSON content.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
