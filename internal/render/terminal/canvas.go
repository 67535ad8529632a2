// Package terminal paints reconciled shapes onto a character grid.
package terminal

import (
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"graphmind/internal/domain/graph"
	"graphmind/internal/render"
)

// Styles
var (
	edgeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	neighborStyle = lipgloss.NewStyle().Underline(true)
	plainStyle    = lipgloss.NewStyle()
)

const (
	glyphNode   = '●'
	glyphPinned = '◆'
	glyphEdge   = '·'
)

// cell style slots
const (
	slotNone = iota - 3
	slotEdge
	slotSelected
)

const slotNeighborBase = 1 << 10

// Canvas is a retained render.Painter that draws onto a fixed character
// grid. World coordinates are mapped into the grid through a viewport that
// the host controls.
type Canvas struct {
	mu sync.Mutex

	cols, rows int
	minX, minY float64
	maxX, maxY float64

	palette   []lipgloss.Style
	nodes     map[string]render.NodeShape
	order     []string
	edges     map[graph.PairKey]render.EdgeShape
	selected  string
	neighbors map[string]struct{}
}

// NewCanvas creates a canvas of cols×rows cells showing the world rectangle
// [0,width]×[0,height].
func NewCanvas(cols, rows int, width, height float64, palette []string) *Canvas {
	c := &Canvas{
		nodes:     make(map[string]render.NodeShape),
		edges:     make(map[graph.PairKey]render.EdgeShape),
		neighbors: make(map[string]struct{}),
	}
	for _, hex := range palette {
		c.palette = append(c.palette, lipgloss.NewStyle().Foreground(lipgloss.Color(hex)))
	}
	if len(c.palette) == 0 {
		c.palette = []lipgloss.Style{plainStyle}
	}
	c.Resize(cols, rows)
	c.SetWorld(0, 0, width, height)
	return c
}

// Resize changes the grid size.
func (c *Canvas) Resize(cols, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cols = max(cols, 1)
	c.rows = max(rows, 1)
}

// SetWorld sets the world rectangle shown by the grid.
func (c *Canvas) SetWorld(minX, minY, maxX, maxY float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if maxX-minX < 1 {
		maxX = minX + 1
	}
	if maxY-minY < 1 {
		maxY = minY + 1
	}
	c.minX, c.minY, c.maxX, c.maxY = minX, minY, maxX, maxY
}

// Fit sets the world rectangle to the bounds of the retained nodes grown by
// margin. It does nothing when no node is retained.
func (c *Canvas) Fit(margin float64) {
	c.mu.Lock()
	if len(c.nodes) == 0 {
		c.mu.Unlock()
		return
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range c.nodes {
		minX, minY = math.Min(minX, n.X), math.Min(minY, n.Y)
		maxX, maxY = math.Max(maxX, n.X), math.Max(maxY, n.Y)
	}
	c.mu.Unlock()
	c.SetWorld(minX-margin, minY-margin, maxX+margin, maxY+margin)
}

// ToCell maps a world position to a grid cell.
func (c *Canvas) ToCell(x, y float64) (col, row int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toCellLocked(x, y)
}

func (c *Canvas) toCellLocked(x, y float64) (int, int) {
	col := int(math.Round((x - c.minX) / (c.maxX - c.minX) * float64(c.cols-1)))
	row := int(math.Round((y - c.minY) / (c.maxY - c.minY) * float64(c.rows-1)))
	return col, row
}

// ToWorld maps a grid cell to the world position at its center.
func (c *Canvas) ToWorld(col, row int) (x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	x = c.minX + float64(col)/float64(max(c.cols-1, 1))*(c.maxX-c.minX)
	y = c.minY + float64(row)/float64(max(c.rows-1, 1))*(c.maxY-c.minY)
	return x, y
}

// NodeAt returns the topmost node whose glyph or label covers the cell.
func (c *Canvas) NodeAt(col, row int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.order) - 1; i >= 0; i-- {
		n := c.nodes[c.order[i]]
		nc, nr := c.toCellLocked(n.X, n.Y)
		if nr != row {
			continue
		}
		width := 1 + len([]rune(n.Label))
		if n.Label != "" {
			width++
		}
		if col >= nc && col < nc+width {
			return n.ID, true
		}
	}
	return "", false
}

// SetHighlight marks the selected node and its neighbors.
func (c *Canvas) SetHighlight(selected string, neighbors []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = selected
	c.neighbors = make(map[string]struct{}, len(neighbors))
	for _, id := range neighbors {
		c.neighbors[id] = struct{}{}
	}
}

// ====================================================================
// render.Painter
// ====================================================================

func (c *Canvas) EnterNode(s render.NodeShape) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[s.ID] = s
	c.order = append(c.order, s.ID)
}

func (c *Canvas) UpdateNode(s render.NodeShape) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[s.ID] = s
}

func (c *Canvas) ExitNode(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nodes, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Canvas) EnterEdge(s render.EdgeShape) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edges[s.Key] = s
}

func (c *Canvas) UpdateEdge(s render.EdgeShape) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edges[s.Key] = s
}

func (c *Canvas) ExitEdge(key graph.PairKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.edges, key)
}

// ====================================================================
// Drawing
// ====================================================================

type cell struct {
	r    rune
	slot int
}

// View draws the retained shapes and returns the styled grid.
func (c *Canvas) View() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	grid := make([][]cell, c.rows)
	for i := range grid {
		grid[i] = make([]cell, c.cols)
		for j := range grid[i] {
			grid[i][j] = cell{r: ' ', slot: slotNone}
		}
	}
	put := func(col, row int, r rune, slot int) {
		if row < 0 || row >= c.rows || col < 0 || col >= c.cols {
			return
		}
		grid[row][col] = cell{r: r, slot: slot}
	}

	for _, e := range c.edges {
		x0, y0 := c.toCellLocked(e.X1, e.Y1)
		x1, y1 := c.toCellLocked(e.X2, e.Y2)
		line(x0, y0, x1, y1, func(x, y int) { put(x, y, glyphEdge, slotEdge) })
	}

	for _, id := range c.order {
		n := c.nodes[id]
		col, row := c.toCellLocked(n.X, n.Y)
		slot := n.ColorIndex % len(c.palette)
		switch _, isNeighbor := c.neighbors[id]; {
		case id == c.selected:
			slot = slotSelected
		case isNeighbor:
			slot += slotNeighborBase
		}
		glyph := glyphNode
		if n.Pinned {
			glyph = glyphPinned
		}
		put(col, row, glyph, slot)
		for i, r := range []rune(n.Label) {
			put(col+2+i, row, r, slot)
		}
	}

	var b strings.Builder
	for i, cells := range grid {
		if i > 0 {
			b.WriteByte('\n')
		}
		start := 0
		for j := 1; j <= len(cells); j++ {
			if j < len(cells) && cells[j].slot == cells[start].slot {
				continue
			}
			run := make([]rune, 0, j-start)
			for _, cl := range cells[start:j] {
				run = append(run, cl.r)
			}
			b.WriteString(c.style(cells[start].slot).Render(string(run)))
			start = j
		}
	}
	return b.String()
}

func (c *Canvas) style(slot int) lipgloss.Style {
	switch {
	case slot == slotNone:
		return plainStyle
	case slot == slotEdge:
		return edgeStyle
	case slot == slotSelected:
		return selectedStyle
	case slot >= slotNeighborBase:
		return c.palette[slot-slotNeighborBase].Inherit(neighborStyle)
	default:
		return c.palette[slot]
	}
}

// line walks the cells between two points (Bresenham), skipping endpoints.
func line(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	x, y := x0, y0
	for {
		if (x != x0 || y != y0) && (x != x1 || y != y1) {
			plot(x, y)
		}
		if x == x1 && y == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
