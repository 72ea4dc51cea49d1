package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hpungsan/shelf/internal/db"
)

// grid is a rounded go-pretty table. Headers keep the case they are given.
type grid struct {
	tw      table.Writer
	columns int
}

func newGrid(headers ...string) *grid {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	if len(headers) > 0 {
		row := make(table.Row, len(headers))
		for i, h := range headers {
			row[i] = h
		}
		tw.AppendHeader(row)
	}
	return &grid{tw: tw, columns: len(headers)}
}

// alignRight right-aligns the given one-based columns.
func (g *grid) alignRight(columns ...int) *grid {
	configs := make([]table.ColumnConfig, 0, len(columns))
	for _, n := range columns {
		configs = append(configs, table.ColumnConfig{
			Number:      n,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	g.tw.SetColumnConfigs(configs)
	return g
}

// row appends cells, padding short rows to the header width.
func (g *grid) row(cells ...string) {
	n := max(g.columns, len(cells))
	r := make(table.Row, n)
	for i := range n {
		if i < len(cells) {
			r[i] = cells[i]
		} else {
			r[i] = ""
		}
	}
	g.tw.AppendRow(r)
}

func (g *grid) caption(format string, args ...any) {
	g.tw.SetCaption(format, args...)
}

func (g *grid) render() string {
	return g.tw.Render()
}

// recordsTable lists managed records with right-aligned app ids.
func recordsTable(items []db.ManagedGame) *grid {
	g := newGrid("Key", "App ID").alignRight(2)
	for _, item := range items {
		g.row(item.Key, strconv.FormatInt(item.AppID, 10))
	}
	return g
}

// keyValueTable renders label/value pairs without a header row.
func keyValueTable(pairs [][2]string) string {
	g := newGrid()
	for _, p := range pairs {
		g.row(p[0], p[1])
	}
	return g.render()
}

// shortKey trims an identity key for display; JSON output keeps the full key.
func shortKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:12]
}
