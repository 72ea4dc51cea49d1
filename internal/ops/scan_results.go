package ops

import (
	"github.com/hpungsan/shelf/internal/db"
	"github.com/hpungsan/shelf/internal/library"
)

// GameView is the payload an integration needs to create an entry for a game.
type GameView struct {
	Name       string            `json:"name"`
	Title      string            `json:"title"`
	Executable string            `json:"executable"`
	Directory  string            `json:"directory"`
	Options    string            `json:"options"`
	Compat     string            `json:"compat"`
	Hidden     bool              `json:"hidden"`
	Artwork    map[string]string `json:"artwork"`
}

// UnmanagedItem is one scanned game without a managed record.
type UnmanagedItem struct {
	Key  string   `json:"key"`
	Game GameView `json:"game"`
}

// UnmanagedListOutput contains a page of unmanaged games.
type UnmanagedListOutput struct {
	Items      []UnmanagedItem `json:"items"`
	Pagination Pagination      `json:"pagination"`
}

// RemovedListOutput contains a page of managed records that were not scanned.
type RemovedListOutput struct {
	Items      []db.ManagedGame `json:"items"`
	Pagination Pagination       `json:"pagination"`
}

func viewOf(g *library.Game) GameView {
	art := make(map[string]string, len(g.Artwork))
	for role, path := range g.ArtworkPaths() {
		art[string(role)] = path
	}
	return GameView{
		Name:       g.Name,
		Title:      g.Title,
		Executable: g.Executable,
		Directory:  g.Directory,
		Options:    g.Options,
		Compat:     g.Compat,
		Hidden:     g.Hidden,
		Artwork:    art,
	}
}

// ListUnmanaged returns one page of the current scan's unmanaged games.
func ListUnmanaged(eng *library.Engine, input PageInput) (*UnmanagedListOutput, error) {
	p, err := eng.Unmanaged(input.Page)
	if err != nil {
		return nil, normalize(err)
	}

	items := make([]UnmanagedItem, 0, len(p.Items))
	for _, entry := range p.Items {
		items = append(items, UnmanagedItem{Key: entry.Key, Game: viewOf(entry.Game)})
	}
	return &UnmanagedListOutput{Items: items, Pagination: paginationOf(p)}, nil
}

// ListRemoved returns one page of the current scan's removed records.
func ListRemoved(eng *library.Engine, input PageInput) (*RemovedListOutput, error) {
	p, err := eng.Removed(input.Page)
	if err != nil {
		return nil, normalize(err)
	}

	items := append([]db.ManagedGame{}, p.Items...)
	return &RemovedListOutput{Items: items, Pagination: paginationOf(p)}, nil
}
