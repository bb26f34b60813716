// Package grid is the spatial provider collaborator: it supplies the set of
// claimable cell identifiers, their adjacency, and their terrain-derived
// classification. Cells use the map grid naming convention (column letter +
// row number, "A0" through "Z25").
package grid

import (
	"fmt"
	"log/slog"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Cell is one claimable unit of the map grid.
type Cell struct {
	ID       string
	Col      int
	Row      int
	Badlands bool
	Monument string // Dangerous monument within the cell, "" when none.
}

// Provider generates and answers queries about the map grid. The layout is
// deterministic for a given seed.
type Provider struct {
	size  int
	cells map[string]*Cell
}

// NewProvider builds a size x size grid. Badlands form along a noise band and
// each configured monument lands in a deterministic cell.
func NewProvider(seed int64, size int, monuments []string) *Provider {
	if size <= 0 {
		size = 26
	}
	if size > 26 {
		size = 26
	}

	noise := opensimplex.NewNormalized(seed)
	p := &Provider{size: size, cells: make(map[string]*Cell, size*size)}

	badlands := 0
	for col := 0; col < size; col++ {
		for row := 0; row < size; row++ {
			c := &Cell{
				ID:  CellID(col, row),
				Col: col,
				Row: row,
			}
			// Badlands track a narrow band of the noise field, roughly a
			// tenth of the map.
			v := noise.Eval2(float64(col)*0.18, float64(row)*0.18)
			if v > 0.45 && v < 0.55 {
				c.Badlands = true
				badlands++
			}
			p.cells[c.ID] = c
		}
	}

	// Scatter monuments over non-badlands cells, walking the noise field
	// from a per-monument offset so placement is stable across restarts.
	monNoise := opensimplex.NewNormalized(seed + 1)
	for i, name := range monuments {
		best := ""
		bestV := -1.0
		for _, c := range p.cells {
			if c.Badlands || c.Monument != "" {
				continue
			}
			v := monNoise.Eval2(float64(c.Col)+float64(i)*7.3, float64(c.Row)-float64(i)*3.1)
			if v > bestV {
				bestV = v
				best = c.ID
			}
		}
		if best != "" {
			p.cells[best].Monument = name
		}
	}

	slog.Info("grid generated", "size", size, "cells", len(p.cells), "badlands", badlands, "monuments", len(monuments))
	return p
}

// CellID formats the canonical id for a column and row.
func CellID(col, row int) string {
	return fmt.Sprintf("%c%d", 'A'+col, row)
}

// Cells returns every cell in the grid.
func (p *Provider) Cells() []*Cell {
	all := make([]*Cell, 0, len(p.cells))
	for _, c := range p.cells {
		all = append(all, c)
	}
	return all
}

// Get returns the cell with the given id, or nil.
func (p *Provider) Get(id string) *Cell {
	return p.cells[id]
}

// Adjacent reports whether two cells share an edge, for claim-contiguity
// checks by the game layer.
func (p *Provider) Adjacent(a, b string) bool {
	ca, cb := p.cells[a], p.cells[b]
	if ca == nil || cb == nil {
		return false
	}
	dc := ca.Col - cb.Col
	dr := ca.Row - cb.Row
	if dc < 0 {
		dc = -dc
	}
	if dr < 0 {
		dr = -dr
	}
	return dc+dr == 1
}
