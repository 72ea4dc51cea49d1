package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/shelf/internal/config"
	"github.com/hpungsan/shelf/internal/errors"
	"github.com/hpungsan/shelf/internal/library"
)

// testSetup opens an engine over a temporary store and library root.
func testSetup(t *testing.T) (*library.Engine, *config.Config, string) {
	t.Helper()

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.DefaultLibraryDir = root
	cfg.IdleGraceMS = 10

	eng, err := library.Open(cfg, t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		eng.Close(ctx)
	})

	return eng, cfg, root
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func writeGame(t *testing.T, root, name string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := fmt.Sprintf(`{"name": %q, "executable": "run"}`, name)
	if err := os.WriteFile(filepath.Join(dir, ".gameinfo.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHandleConfig(t *testing.T) {
	eng, _, _ := testSetup(t)
	h := NewHandlers(eng, nil)
	ctx := context.Background()

	t.Run("set then get", func(t *testing.T) {
		result, err := h.HandleConfigSet(ctx, makeRequest(map[string]any{
			"name":  "GameLibDir",
			"value": "/games",
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		parseOutput(t, result)

		result, err = h.HandleConfigGet(ctx, makeRequest(map[string]any{"name": "GameLibDir"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := parseOutput(t, result)
		if out["value"] != "/games" || out["found"] != true {
			t.Errorf("config_get = %v", out)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		result, _ := h.HandleConfigGet(ctx, makeRequest(map[string]any{}))
		assertErrorCode(t, result, string(errors.ErrInvalidRequest))
	})

	t.Run("unknown argument", func(t *testing.T) {
		result, _ := h.HandleConfigGet(ctx, makeRequest(map[string]any{"name": "x", "nmae": "y"}))
		assertErrorCode(t, result, string(errors.ErrInvalidRequest))
	})

	t.Run("wrong type", func(t *testing.T) {
		result, _ := h.HandleConfigSet(ctx, makeRequest(map[string]any{"name": "x", "value": 5}))
		assertErrorCode(t, result, string(errors.ErrInvalidRequest))
	})
}

func TestHandleSyncAndLists(t *testing.T) {
	eng, _, root := testSetup(t)
	h := NewHandlers(eng, nil)
	ctx := context.Background()

	writeGame(t, root, "doom")
	writeGame(t, root, "quake")

	result, err := h.HandleSync(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := parseOutput(t, result)
	if out["success"] != true || out["unmanaged"] != float64(2) {
		t.Fatalf("library_sync = %v", out)
	}

	result, _ = h.HandleUnmanagedList(ctx, makeRequest(map[string]any{"page": 0}))
	out = parseOutput(t, result)
	items := out["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("unmanaged_list items = %d, want 2", len(items))
	}
	first := items[0].(map[string]any)
	key := first["key"].(string)
	game := first["game"].(map[string]any)
	if game["executable"] == "" || game["title"] == "" {
		t.Errorf("game payload = %v", game)
	}

	result, _ = h.HandleManagedAdd(ctx, makeRequest(map[string]any{"key": key, "app_id": 4242}))
	out = parseOutput(t, result)
	if out["app_id"] != float64(4242) {
		t.Errorf("managed_add = %v", out)
	}

	result, _ = h.HandleManagedCount(ctx, makeRequest(nil))
	if out = parseOutput(t, result); out["count"] != float64(1) {
		t.Errorf("managed_count = %v", out)
	}

	result, _ = h.HandleManagedList(ctx, makeRequest(nil))
	out = parseOutput(t, result)
	pagination := out["pagination"].(map[string]any)
	if pagination["total"] != float64(1) || pagination["page_size"] != float64(50) {
		t.Errorf("managed_list pagination = %v", pagination)
	}

	result, _ = h.HandleGameCount(ctx, makeRequest(nil))
	if out = parseOutput(t, result); out["count"] != float64(2) {
		t.Errorf("library_count = %v", out)
	}

	result, _ = h.HandleRemovedList(ctx, makeRequest(map[string]any{"page": 3}))
	out = parseOutput(t, result)
	if len(out["items"].([]any)) != 0 {
		t.Errorf("removed_list past the end = %v", out)
	}

	result, _ = h.HandleManagedRemove(ctx, makeRequest(map[string]any{"key": key}))
	if out = parseOutput(t, result); out["removed"] != true {
		t.Errorf("managed_remove = %v", out)
	}

	result, _ = h.HandleStatus(ctx, makeRequest(nil))
	out = parseOutput(t, result)
	if out["library_root"] != root || out["games"] != float64(2) || out["scanning"] != false {
		t.Errorf("library_status = %v", out)
	}
}

func TestHandleManagedAdd_Errors(t *testing.T) {
	eng, _, _ := testSetup(t)
	h := NewHandlers(eng, nil)
	ctx := context.Background()

	result, _ := h.HandleManagedAdd(ctx, makeRequest(map[string]any{"key": "a", "app_id": 1}))
	parseOutput(t, result)

	result, _ = h.HandleManagedAdd(ctx, makeRequest(map[string]any{"key": "b", "app_id": 1}))
	assertErrorCode(t, result, string(errors.ErrConflict))

	result, _ = h.HandleManagedAdd(ctx, makeRequest(map[string]any{"app_id": 2}))
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))

	result, _ = h.HandleUnmanagedList(ctx, makeRequest(map[string]any{"page": -1}))
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))
}

func TestServerRegistration(t *testing.T) {
	eng, cfg, _ := testSetup(t)

	s := NewServer(eng, cfg, zap.NewNop(), "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"library_sync",
		"library_status",
		"library_count",
		"config_get",
		"config_set",
		"managed_list",
		"managed_count",
		"managed_add",
		"managed_remove",
		"unmanaged_list",
		"removed_list",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	eng, cfg, _ := testSetup(t)

	cfg.DisabledTools = []string{"managed_remove", "config_set", "config_set"}
	s := NewServer(eng, cfg, zap.NewNop(), "test")
	tools := s.ListTools()

	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range []string{"managed_remove", "config_set"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	eng, cfg, _ := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	s := NewServer(eng, cfg, zap.NewNop(), "test")

	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"managed_remove", "config_set"}, 0},
		{"one unknown", []string{"managed_remove", "capsule_store"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unknown := ValidateDisabledTools(tt.input); len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools(%v) = %v, want %d unknown", tt.input, unknown, tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 11 {
		t.Errorf("AllToolNames() returned %d names, want 11", len(names))
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("descriptor 2: %w", errors.NewValidation("/g/.gameinfo.json", "missing name"))

	errObj := errorObject(t, errorResult(wrappedErr))
	if errObj["code"] != string(errors.ErrValidation) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrValidation)
	}
	if msg := errObj["message"].(string); !strings.Contains(msg, "descriptor 2") {
		t.Errorf("message should contain wrapper context, got: %s", msg)
	}
}

func TestErrorResult_PlainErrorIsInternal(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) || errObj["message"] != "an internal error occurred" {
		t.Errorf("error = %v", errObj)
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error %s, got success: %s", expectedCode, extractErrorMessage(result))
		return
	}
	if code, _ := errorObject(t, result)["code"].(string); code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
