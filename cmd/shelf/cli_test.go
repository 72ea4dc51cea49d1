package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/shelf/internal/config"
	"github.com/hpungsan/shelf/internal/db"
	"github.com/hpungsan/shelf/internal/library"
	"github.com/hpungsan/shelf/internal/ops"
)

func setupTestEngine(t *testing.T) (*library.Engine, string) {
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
		t.Fatalf("library.Open failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		eng.Close(ctx)
	})
	return eng, root
}

func writeDescriptor(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".gameinfo.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

// runCLI runs the app with args and returns what it wrote to stdout.
func runCLI(t *testing.T, eng *library.Engine, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newCLIApp(eng, nil)
	app.Writer = &out
	err := app.Run(append([]string{"shelf"}, args...))
	return out.String(), err
}

func decodeOutput[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON output %q: %v", out, err)
	}
	return v
}

func exitCode(err error) int {
	if ec, ok := err.(cli.ExitCoder); ok {
		return ec.ExitCode()
	}
	return -1
}

func TestCLI_Sync(t *testing.T) {
	eng, root := setupTestEngine(t)
	writeDescriptor(t, filepath.Join(root, "a"), `{"name":"A","executable":"a.exe"}`)
	writeDescriptor(t, filepath.Join(root, "b"), `{"name":"B","executable":"b.exe"}`)

	out, err := runCLI(t, eng, "sync")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	result := decodeOutput[ops.SyncOutput](t, out)
	if !result.Success {
		t.Fatalf("sync reported failure: %+v", result)
	}
	if result.Games != 2 || result.Unmanaged != 2 || result.Removed != 0 {
		t.Errorf("sync = %+v, want 2 games, 2 unmanaged", result)
	}
	if result.GenerationID == "" {
		t.Error("expected a generation id")
	}
}

func TestCLI_SyncFailure(t *testing.T) {
	eng, _ := setupTestEngine(t)

	if _, err := runCLI(t, eng, "config", "set", "GameLibDir", filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Fatalf("config set failed: %v", err)
	}

	out, err := runCLI(t, eng, "sync")
	if err == nil {
		t.Fatal("expected error for missing library root")
	}
	if exitCode(err) != 1 {
		t.Errorf("exit code = %d, want 1", exitCode(err))
	}
	if !strings.Contains(err.Error(), "SCAN_FAILED") {
		t.Errorf("error = %q, want SCAN_FAILED", err.Error())
	}

	result := decodeOutput[ops.SyncOutput](t, out)
	if result.Success {
		t.Error("expected success=false in output")
	}
}

func TestCLI_ConfigGetSet(t *testing.T) {
	eng, _ := setupTestEngine(t)

	if _, err := runCLI(t, eng, "config", "get", "GameLibDir"); err == nil {
		t.Fatal("expected NOT_FOUND before set")
	} else if !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("error = %q, want NOT_FOUND", err.Error())
	}

	if _, err := runCLI(t, eng, "config", "set", "GameLibDir", "/games"); err != nil {
		t.Fatalf("config set failed: %v", err)
	}

	out, err := runCLI(t, eng, "config", "get", "GameLibDir")
	if err != nil {
		t.Fatalf("config get failed: %v", err)
	}
	got := decodeOutput[ops.GetConfigOutput](t, out)
	if !got.Found || got.Value != "/games" {
		t.Errorf("config get = %+v, want /games", got)
	}
}

func TestCLI_ConfigUsage(t *testing.T) {
	eng, _ := setupTestEngine(t)

	_, err := runCLI(t, eng, "config", "set", "GameLibDir")
	if err == nil {
		t.Fatal("expected usage error")
	}
	if !strings.Contains(err.Error(), "INVALID_REQUEST") {
		t.Errorf("error = %q, want INVALID_REQUEST", err.Error())
	}
}

func TestCLI_ManagedLifecycle(t *testing.T) {
	eng, root := setupTestEngine(t)
	writeDescriptor(t, filepath.Join(root, "a"), `{"name":"A","executable":"a.exe"}`)

	out, err := runCLI(t, eng, "unmanaged")
	if err != nil {
		t.Fatalf("unmanaged failed: %v", err)
	}
	list := decodeOutput[ops.UnmanagedListOutput](t, out)
	if len(list.Items) != 1 {
		t.Fatalf("unmanaged items = %d, want 1", len(list.Items))
	}
	key := list.Items[0].Key

	if _, err := runCLI(t, eng, "managed", "add", key, "42"); err != nil {
		t.Fatalf("managed add failed: %v", err)
	}

	out, err = runCLI(t, eng, "managed", "count")
	if err != nil {
		t.Fatalf("managed count failed: %v", err)
	}
	if got := decodeOutput[ops.CountOutput](t, out); got.Count != 1 {
		t.Errorf("managed count = %d, want 1", got.Count)
	}

	out, err = runCLI(t, eng, "unmanaged")
	if err != nil {
		t.Fatalf("unmanaged failed: %v", err)
	}
	if list := decodeOutput[ops.UnmanagedListOutput](t, out); len(list.Items) != 0 {
		t.Errorf("unmanaged items after add = %d, want 0", len(list.Items))
	}

	// The game disappears; its record shows up as removed.
	if err := os.RemoveAll(filepath.Join(root, "a")); err != nil {
		t.Fatal(err)
	}
	out, err = runCLI(t, eng, "removed")
	if err != nil {
		t.Fatalf("removed failed: %v", err)
	}
	removed := decodeOutput[ops.RemovedListOutput](t, out)
	if len(removed.Items) != 1 || removed.Items[0].Key != key || removed.Items[0].AppID != 42 {
		t.Errorf("removed = %+v, want %s/42", removed.Items, key)
	}

	out, err = runCLI(t, eng, "managed", "remove", key)
	if err != nil {
		t.Fatalf("managed remove failed: %v", err)
	}
	if got := decodeOutput[ops.RemoveManagedOutput](t, out); !got.Removed {
		t.Error("expected removed=true")
	}
}

func TestCLI_ManagedAddInvalidAppID(t *testing.T) {
	eng, _ := setupTestEngine(t)

	_, err := runCLI(t, eng, "managed", "add", "k", "abc")
	if err == nil {
		t.Fatal("expected error for non-numeric app id")
	}
	if !strings.Contains(err.Error(), "INVALID_REQUEST") {
		t.Errorf("error = %q, want INVALID_REQUEST", err.Error())
	}
}

func TestCLI_ManagedListPaging(t *testing.T) {
	eng, _ := setupTestEngine(t)

	for i, key := range []string{"k1", "k2", "k3"} {
		if _, err := runCLI(t, eng, "managed", "add", key, strconv.Itoa(i+1)); err != nil {
			t.Fatalf("managed add %s failed: %v", key, err)
		}
	}

	out, err := runCLI(t, eng, "managed", "list", "--page", "0")
	if err != nil {
		t.Fatalf("managed list failed: %v", err)
	}
	list := decodeOutput[ops.ManagedListOutput](t, out)
	if list.Pagination.Total != 3 || len(list.Items) != 3 {
		t.Errorf("managed list = %+v, want 3 items", list)
	}
	if list.Items[0].Key != "k1" {
		t.Errorf("first key = %q, want k1", list.Items[0].Key)
	}

	if _, err := runCLI(t, eng, "managed", "list", "--page=-1"); err == nil {
		t.Error("expected error for negative page")
	}
}

func TestCLI_StatusAndCount(t *testing.T) {
	eng, root := setupTestEngine(t)
	writeDescriptor(t, filepath.Join(root, "a"), `{"name":"A","executable":"a.exe"}`)

	out, err := runCLI(t, eng, "count")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if got := decodeOutput[ops.CountOutput](t, out); got.Count != 0 {
		t.Errorf("count before scan = %d, want 0", got.Count)
	}

	if _, err := runCLI(t, eng, "sync"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	out, err = runCLI(t, eng, "--json", "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	var status map[string]any
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status["library_root"] != root {
		t.Errorf("library_root = %v, want %s", status["library_root"], root)
	}
	if status["games"] != float64(1) {
		t.Errorf("games = %v, want 1", status["games"])
	}
	if _, ok := status["queue"].(map[string]any); !ok {
		t.Errorf("expected queue stats, got %v", status["queue"])
	}
}

func TestRecordsTable_KeepsHeaderCase(t *testing.T) {
	g := recordsTable([]db.ManagedGame{{Key: "abc", AppID: 7}, {Key: "def", AppID: 12}})
	g.caption("%s", pageCaption(ops.Pagination{Page: 0, PageSize: 2, Total: 3, HasMore: true}))
	out := g.render()

	for _, want := range []string{"Key", "App ID", "abc", "def", "12", "page 0, 3 total, next: --page 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "KEY") || strings.Contains(out, "APP ID") {
		t.Errorf("headers were upper-cased:\n%s", out)
	}
}

func TestGrid_PadsShortRows(t *testing.T) {
	g := newGrid("Key", "Title", "Executable")
	g.row("abc")
	out := g.render()
	if !strings.Contains(out, "abc") || !strings.Contains(out, "Executable") {
		t.Errorf("unexpected table:\n%s", out)
	}
}

func TestKeyValueTable_NoHeader(t *testing.T) {
	out := keyValueTable([][2]string{{"library root", "/games"}, {"games", "3"}})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// top border, two rows, bottom border
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "library root") || !strings.Contains(lines[1], "/games") {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestPageCaption(t *testing.T) {
	if got := pageCaption(ops.Pagination{Page: 2, Total: 1234}); got != "page 2, 1,234 total" {
		t.Errorf("pageCaption = %q", got)
	}
}

func TestShortKey(t *testing.T) {
	if got := shortKey("abc"); got != "abc" {
		t.Errorf("shortKey(abc) = %q", got)
	}
	if got := shortKey(strings.Repeat("f", 64)); len(got) != 12 {
		t.Errorf("shortKey length = %d, want 12", len(got))
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"shelf"}, expected: false},
		{name: "sync command", args: []string{"shelf", "sync"}, expected: true},
		{name: "managed command", args: []string{"shelf", "managed", "list"}, expected: true},
		{name: "json flag before command", args: []string{"shelf", "--json", "status"}, expected: true},
		{name: "json flag alone", args: []string{"shelf", "--json"}, expected: false},
		{name: "help flag", args: []string{"shelf", "--help"}, expected: true},
		{name: "short version flag", args: []string{"shelf", "-v"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"shelf", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if got := isCLIMode(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		args     []string
		expected bool
	}{
		{[]string{"shelf"}, false},
		{[]string{"shelf", "--help"}, true},
		{[]string{"shelf", "help"}, true},
		{[]string{"shelf", "--version"}, true},
		{[]string{"shelf", "sync"}, false},
	}

	for _, tt := range tests {
		oldArgs := os.Args
		os.Args = tt.args
		got := isHelpOrVersion()
		os.Args = oldArgs
		if got != tt.expected {
			t.Errorf("isHelpOrVersion(%v) = %v, want %v", tt.args, got, tt.expected)
		}
	}
}
