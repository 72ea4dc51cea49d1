// Package library scans a game library for descriptor files and reconciles
// the result against the managed records held in the store.
package library

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hpungsan/shelf/internal/config"
	"github.com/hpungsan/shelf/internal/db"
	"github.com/hpungsan/shelf/internal/errors"
	"github.com/hpungsan/shelf/internal/store"
)

// LibraryDirKey is the config entry that overrides the default library root.
const LibraryDirKey = "GameLibDir"

// PageSizes are the fixed page sizes per result kind.
type PageSizes struct {
	Managed   int
	Unmanaged int
	Removed   int
}

// Options configures an Engine.
type Options struct {
	DefaultLibraryDir string
	Pattern           string
	FollowSymlinks    bool
	Scheduler         Scheduler
	PageSizes         PageSizes
}

// OptionsFromConfig maps file config onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	var sched Scheduler = Inline{}
	if cfg.ScanMode != config.ScanModeInline && cfg.ScanWorkers > 0 {
		sched = NewPooled(cfg.ScanWorkers)
	}
	return Options{
		DefaultLibraryDir: cfg.DefaultLibraryDir,
		Pattern:           cfg.DescriptorPattern,
		FollowSymlinks:    cfg.Follow(),
		Scheduler:         sched,
		PageSizes: PageSizes{
			Managed:   cfg.PageSizeManaged,
			Unmanaged: cfg.PageSizeUnmanaged,
			Removed:   cfg.PageSizeRemoved,
		},
	}
}

// Generation is the complete result of one scan pass. It is published whole
// and never modified afterwards.
type Generation struct {
	ID        string
	Root      string
	ScannedAt time.Time
	Games     map[string]*Game
	// Unmanaged holds scanned keys with no managed record, sorted.
	Unmanaged []string
	// Removed holds managed records whose key was not scanned, sorted by key.
	Removed []db.ManagedGame
}

// UnmanagedEntry is a scanned game that has not been imported.
type UnmanagedEntry struct {
	Key  string `json:"key"`
	Game *Game  `json:"game"`
}

// Page is one slice of a result set.
type Page[T any] struct {
	Items    []T
	Page     int
	PageSize int
	Total    int
	HasMore  bool
}

// Status is a snapshot of engine and store state.
type Status struct {
	Scanning      bool        `json:"scanning"`
	Scans         int64       `json:"scans"`
	LibraryRoot   string      `json:"library_root"`
	GenerationID  string      `json:"generation_id,omitempty"`
	ScannedAt     time.Time   `json:"scanned_at,omitzero"`
	Games         int         `json:"games"`
	Unmanaged     int         `json:"unmanaged"`
	Removed       int         `json:"removed"`
	Managed       int         `json:"managed"`
	Queue         store.Stats `json:"queue"`
	LastScanError string      `json:"last_scan_error,omitempty"`
}

// Engine owns the store queue and the current scan generation.
type Engine struct {
	queue   *store.Queue
	logger  *zap.Logger
	opts    Options
	scanner *Scanner

	gen      atomic.Pointer[Generation]
	flight   singleflight.Group
	scanning atomic.Bool
	scans    atomic.Int64
	lastErr  atomic.Pointer[string]
}

// New builds an engine on an open queue.
func New(queue *store.Queue, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = Inline{}
	}
	def := config.DefaultConfig()
	if opts.Pattern == "" {
		opts.Pattern = def.DescriptorPattern
	}
	if opts.DefaultLibraryDir == "" {
		opts.DefaultLibraryDir = def.DefaultLibraryDir
	}
	if opts.PageSizes.Managed <= 0 {
		opts.PageSizes.Managed = def.PageSizeManaged
	}
	if opts.PageSizes.Unmanaged <= 0 {
		opts.PageSizes.Unmanaged = def.PageSizeUnmanaged
	}
	if opts.PageSizes.Removed <= 0 {
		opts.PageSizes.Removed = def.PageSizeRemoved
	}

	logger = logger.Named("library")
	return &Engine{
		queue:  queue,
		logger: logger,
		opts:   opts,
		scanner: &Scanner{
			Pattern:        opts.Pattern,
			FollowSymlinks: opts.FollowSymlinks,
			Scheduler:      opts.Scheduler,
			Logger:         logger,
		},
	}
}

// Open takes ownership of the store under baseDir and returns a ready engine.
func Open(cfg *config.Config, baseDir string, logger *zap.Logger) (*Engine, error) {
	h, err := db.Init(baseDir)
	if err != nil {
		return nil, err
	}
	q := store.New(h, logger, store.Options{
		Capacity:      cfg.QueueCapacity,
		FlushInterval: cfg.FlushInterval(),
		IdleGrace:     cfg.IdleGrace(),
	})
	return New(q, logger, OptionsFromConfig(cfg)), nil
}

// Close shuts the queue down: no new commands, drain, final flush, release
// the store. If ctx ends first Close returns its error while shutdown
// continues in the background.
func (e *Engine) Close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- e.queue.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsScanning reports whether a scan pass is in flight.
func (e *Engine) IsScanning() bool {
	return e.scanning.Load()
}

// Current returns the latest generation, or nil before the first scan.
func (e *Engine) Current() *Generation {
	return e.gen.Load()
}

// Sync runs a scan pass. Callers that arrive while a pass is in flight wait
// for it and share its result instead of starting another traversal. On
// failure the previous generation stays in place.
func (e *Engine) Sync(ctx context.Context) (*Generation, error) {
	ch := e.flight.DoChan("scan", func() (any, error) {
		return e.scan(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Generation), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) scan(ctx context.Context) (*Generation, error) {
	e.scanning.Store(true)
	defer e.scanning.Store(false)
	e.scans.Add(1)

	gen, err := e.buildGeneration(ctx)
	if err != nil {
		msg := err.Error()
		e.lastErr.Store(&msg)
		e.logger.Error("scan failed", zap.Error(err))
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewScanFailed(err)
	}

	e.lastErr.Store(nil)
	e.gen.Store(gen)
	e.logger.Info("scan complete",
		zap.String("generation", gen.ID),
		zap.String("root", gen.Root),
		zap.Int("games", len(gen.Games)),
		zap.Int("unmanaged", len(gen.Unmanaged)),
		zap.Int("removed", len(gen.Removed)),
	)
	return gen, nil
}

func (e *Engine) buildGeneration(ctx context.Context) (*Generation, error) {
	root, err := e.LibraryRoot(ctx)
	if err != nil {
		return nil, err
	}

	managed, err := e.queue.AllManaged().Wait(ctx)
	if err != nil {
		return nil, err
	}

	e.logger.Info("scanning library", zap.String("root", root))
	files, err := e.scanner.Scan(root)
	if err != nil {
		return nil, errors.NewScanFailed(err)
	}

	games := e.loadAll(files)
	unmanaged, removedKeys := Diff(games, managed)

	removed := make([]db.ManagedGame, len(removedKeys))
	for i, key := range removedKeys {
		removed[i] = db.ManagedGame{Key: key, AppID: managed[key]}
	}

	return &Generation{
		ID:        ulid.Make().String(),
		Root:      root,
		ScannedAt: time.Now().UTC(),
		Games:     games,
		Unmanaged: unmanaged,
		Removed:   removed,
	}, nil
}

// loadAll loads every descriptor through the scheduler. Failures are logged
// and skipped individually.
func (e *Engine) loadAll(files []string) map[string]*Game {
	results := make([]LoadResult, len(files))
	group := e.opts.Scheduler.NewGroup()
	for i, path := range files {
		group.Go(func() error {
			results[i] = Load(path)
			return nil
		})
	}
	_ = group.Wait()

	games := make(map[string]*Game, len(files))
	for _, r := range results {
		if !r.OK() {
			e.logger.Warn("skipping invalid descriptor",
				zap.String("path", r.Failure.Path),
				zap.String("kind", string(r.Failure.Kind)),
				zap.String("reason", r.Failure.Reason),
			)
			continue
		}
		games[Key(r.Game)] = r.Game
	}
	return games
}

// Diff returns the sorted keys that are scanned but not managed, and managed
// but not scanned.
func Diff(scanned map[string]*Game, managed map[string]int64) (unmanaged, removed []string) {
	unmanaged = []string{}
	removed = []string{}
	for key := range scanned {
		if _, ok := managed[key]; !ok {
			unmanaged = append(unmanaged, key)
		}
	}
	for key := range managed {
		if _, ok := scanned[key]; !ok {
			removed = append(removed, key)
		}
	}
	sort.Strings(unmanaged)
	sort.Strings(removed)
	return unmanaged, removed
}

// LibraryRoot resolves the library directory: the GameLibDir entry when set,
// otherwise the configured default, with "~" expanded.
func (e *Engine) LibraryRoot(ctx context.Context) (string, error) {
	v, err := e.queue.GetConfig(LibraryDirKey).Wait(ctx)
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(v.Value)
	if dir == "" {
		dir = e.opts.DefaultLibraryDir
	}
	root, err := config.ExpandPath(dir)
	if err != nil {
		return "", errors.NewScanFailed(err)
	}
	return filepath.Clean(root), nil
}

func paginate[T any](items []T, page, size int) (Page[T], error) {
	if page < 0 {
		return Page[T]{}, errors.NewInvalidRequest("page must be >= 0")
	}
	p := Page[T]{Items: []T{}, Page: page, PageSize: size, Total: len(items)}
	start := page * size
	if start >= len(items) {
		return p, nil
	}
	end := min(start+size, len(items))
	p.Items = items[start:end]
	p.HasMore = end < len(items)
	return p, nil
}

// Unmanaged returns one page of scanned-but-unmanaged games from the current
// generation. Before the first scan every page is empty.
func (e *Engine) Unmanaged(page int) (Page[UnmanagedEntry], error) {
	gen := e.gen.Load()
	var entries []UnmanagedEntry
	if gen != nil {
		entries = make([]UnmanagedEntry, len(gen.Unmanaged))
		for i, key := range gen.Unmanaged {
			entries[i] = UnmanagedEntry{Key: key, Game: gen.Games[key]}
		}
	}
	return paginate(entries, page, e.opts.PageSizes.Unmanaged)
}

// Removed returns one page of managed records missing from the current generation.
func (e *Engine) Removed(page int) (Page[db.ManagedGame], error) {
	var removed []db.ManagedGame
	if gen := e.gen.Load(); gen != nil {
		removed = gen.Removed
	}
	return paginate(removed, page, e.opts.PageSizes.Removed)
}

// Managed returns one page of managed records ordered by key.
func (e *Engine) Managed(ctx context.Context, page int) (Page[db.ManagedGame], error) {
	if page < 0 {
		return Page[db.ManagedGame]{}, errors.NewInvalidRequest("page must be >= 0")
	}
	size := e.opts.PageSizes.Managed

	count := e.queue.CountManaged()
	list := e.queue.ListManaged(size, page*size)

	total, err := count.Wait(ctx)
	if err != nil {
		return Page[db.ManagedGame]{}, err
	}
	items, err := list.Wait(ctx)
	if err != nil {
		return Page[db.ManagedGame]{}, err
	}
	return Page[db.ManagedGame]{
		Items:    items,
		Page:     page,
		PageSize: size,
		Total:    total,
		HasMore:  (page+1)*size < total,
	}, nil
}

// CountManaged returns the number of managed records.
func (e *Engine) CountManaged(ctx context.Context) (int, error) {
	return e.queue.CountManaged().Wait(ctx)
}

// GameCount returns the number of games in the current generation, or the
// managed count before the first scan.
func (e *Engine) GameCount(ctx context.Context) (int, error) {
	if gen := e.gen.Load(); gen != nil {
		return len(gen.Games), nil
	}
	return e.CountManaged(ctx)
}

// Add records that the game with key was imported under appID. The current
// generation is not touched; the next scan reflects the change.
func (e *Engine) Add(ctx context.Context, key string, appID int64) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.NewInvalidRequest("key is required")
	}
	_, err := e.queue.AddManaged(key, appID).Wait(ctx)
	return err
}

// Remove deletes the managed record for key. removed is false when none existed.
func (e *Engine) Remove(ctx context.Context, key string) (removed bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, errors.NewInvalidRequest("key is required")
	}
	return e.queue.RemoveManaged(key).Wait(ctx)
}

// GetConfig reads a stored config entry.
func (e *Engine) GetConfig(ctx context.Context, name string) (store.ConfigValue, error) {
	if strings.TrimSpace(name) == "" {
		return store.ConfigValue{}, errors.NewInvalidRequest("name is required")
	}
	return e.queue.GetConfig(name).Wait(ctx)
}

// SetConfig writes a stored config entry.
func (e *Engine) SetConfig(ctx context.Context, name, value string) error {
	if strings.TrimSpace(name) == "" {
		return errors.NewInvalidRequest("name is required")
	}
	_, err := e.queue.SetConfig(name, value).Wait(ctx)
	return err
}

// Status reports scan and queue state. A failing flush shows up here as
// Queue.LastFlushError without failing the call.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	root, err := e.LibraryRoot(ctx)
	if err != nil {
		return nil, err
	}
	managed, err := e.CountManaged(ctx)
	if err != nil {
		return nil, err
	}

	s := &Status{
		Scanning:    e.IsScanning(),
		Scans:       e.scans.Load(),
		LibraryRoot: root,
		Managed:     managed,
		Queue:       e.queue.Stats(),
	}
	if gen := e.gen.Load(); gen != nil {
		s.GenerationID = gen.ID
		s.ScannedAt = gen.ScannedAt
		s.Games = len(gen.Games)
		s.Unmanaged = len(gen.Unmanaged)
		s.Removed = len(gen.Removed)
	}
	if msg := e.lastErr.Load(); msg != nil {
		s.LastScanError = *msg
	}
	return s, nil
}
