package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/shelf/internal/errors"
)

// Game is one descriptor loaded from disk. It is rebuilt on every scan and
// never mutated afterwards.
type Game struct {
	Path       string            `json:"path"`
	Name       string            `json:"name"`
	Title      string            `json:"title"`
	Executable string            `json:"executable"`
	Directory  string            `json:"directory"`
	Options    string            `json:"options"`
	Compat     string            `json:"compat"`
	Hidden     bool              `json:"hidden"`
	Artwork    map[Role]*Artwork `json:"artwork,omitempty"`
}

// FailureKind classifies why a descriptor could not be loaded.
type FailureKind string

const (
	FailureIO           FailureKind = "io"
	FailureMalformed    FailureKind = "malformed"
	FailureMissingField FailureKind = "missing_field"
	FailureInvalidField FailureKind = "invalid_field"
)

// LoadFailure describes a descriptor that was skipped.
type LoadFailure struct {
	Kind   FailureKind `json:"kind"`
	Path   string      `json:"path"`
	Reason string      `json:"reason"`
}

func (f *LoadFailure) Error() string {
	return fmt.Sprintf("%s: %s (%s)", f.Path, f.Reason, f.Kind)
}

// ShelfError converts the failure to a VALIDATION error.
func (f *LoadFailure) ShelfError() *errors.ShelfError {
	e := errors.NewValidation(f.Path, f.Reason)
	e.Details["kind"] = string(f.Kind)
	return e
}

// LoadResult carries exactly one of Game or Failure.
type LoadResult struct {
	Game    *Game
	Failure *LoadFailure
}

// OK reports whether the descriptor loaded.
func (r LoadResult) OK() bool {
	return r.Game != nil
}

func failed(kind FailureKind, path, format string, args ...any) LoadResult {
	return LoadResult{Failure: &LoadFailure{Kind: kind, Path: path, Reason: fmt.Sprintf(format, args...)}}
}

// Load parses the descriptor at path and probes its directory for artwork.
// Relative executable and directory values resolve against the descriptor's
// own directory.
func Load(path string) LoadResult {
	abs, err := filepath.Abs(path)
	if err != nil {
		return failed(FailureIO, path, "resolve path: %v", err)
	}
	dir := filepath.Dir(abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		return failed(FailureIO, abs, "read: %v", err)
	}

	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return failed(FailureMalformed, abs, "parse: %v", err)
	}
	fields, ok := root.(map[string]any)
	if !ok {
		return failed(FailureMalformed, abs, "root value is not an object")
	}

	g := &Game{Path: abs}

	name, present, err := stringField(fields, "name")
	if err != nil {
		return failed(FailureInvalidField, abs, "%v", err)
	}
	if !present {
		return failed(FailureMissingField, abs, "missing required field \"name\"")
	}
	g.Name = name

	exe, present, err := stringField(fields, "executable")
	if err != nil {
		return failed(FailureInvalidField, abs, "%v", err)
	}
	if !present {
		return failed(FailureMissingField, abs, "missing required field \"executable\"")
	}
	g.Executable = resolve(dir, exe)

	title, present, err := stringField(fields, "title")
	if err != nil {
		return failed(FailureInvalidField, abs, "%v", err)
	}
	g.Title = g.Name
	if present {
		g.Title = title
	}

	directory, _, err := stringField(fields, "directory")
	if err != nil {
		return failed(FailureInvalidField, abs, "%v", err)
	}
	g.Directory = resolve(dir, directory)

	if g.Options, _, err = stringField(fields, "options"); err != nil {
		return failed(FailureInvalidField, abs, "%v", err)
	}
	if g.Compat, _, err = stringField(fields, "compat"); err != nil {
		return failed(FailureInvalidField, abs, "%v", err)
	}

	if v, ok := fields["hidden"]; ok && v != nil {
		hidden, ok := v.(bool)
		if !ok {
			return failed(FailureInvalidField, abs, "field \"hidden\" must be a boolean")
		}
		g.Hidden = hidden
	}

	for _, role := range Roles {
		art, err := HashArtwork(dir, role)
		if err != nil {
			return failed(FailureIO, abs, "hash %s artwork: %v", role, err)
		}
		if art == nil {
			continue
		}
		if g.Artwork == nil {
			g.Artwork = make(map[Role]*Artwork, len(Roles))
		}
		g.Artwork[role] = art
	}

	return LoadResult{Game: g}
}

// stringField reads an optional string. JSON null counts as absent.
func stringField(fields map[string]any, key string) (value string, present bool, err error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", true, fmt.Errorf("field %q must be a string", key)
	}
	return s, true, nil
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

// ArtworkPaths returns role → absolute path for every present role.
func (g *Game) ArtworkPaths() map[Role]string {
	out := make(map[Role]string, len(g.Artwork))
	for role, art := range g.Artwork {
		out[role] = art.Path
	}
	return out
}
