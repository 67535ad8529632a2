// Package svg writes a reconciled scene as a standalone SVG document.
package svg

import (
	"fmt"
	"io"
	"math"

	svgo "github.com/ajstarks/svgo"

	"graphmind/internal/render"
)

// Options controls document framing and highlighting.
type Options struct {
	Width      int
	Height     int
	Padding    float64
	Radius     float64
	Background string
	Title      string
	// Selected is drawn with a heavier stroke; Neighbors with a dashed one.
	Selected  string
	Neighbors []string
}

// DefaultOptions returns the framing used by the HTTP and CLI hosts.
func DefaultOptions() Options {
	return Options{
		Width:      800,
		Height:     600,
		Padding:    20,
		Radius:     50,
		Background: "#fafafa",
		Title:      "GraphMind",
	}
}

const (
	edgeStyle     = "stroke:#999;stroke-opacity:0.6;stroke-width:2"
	labelStyle    = "fill:#222;font-size:12px;font-family:system-ui,sans-serif;text-anchor:middle;dominant-baseline:central"
	shapeStroke   = "stroke:#fff;stroke-width:1.5"
	pinnedStroke  = "stroke:#333;stroke-width:2"
	selectStroke  = "stroke:#111;stroke-width:3"
	neighborDash  = "stroke:#555;stroke-width:2;stroke-dasharray:4 3"
	fallbackColor = "#69b3a2"
)

// errWriter keeps the first write error; svgo itself never reports one.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

// Write renders scene into w. The view box is fitted to the scene bounds
// grown by the outline radius and padding, so any layout coordinates fit.
func Write(w io.Writer, scene render.Scene, palette []string, opts Options) error {
	ew := &errWriter{w: w}
	canvas := svgo.New(ew)

	minX, minY, maxX, maxY := bounds(scene, opts.Radius+opts.Padding)
	vw := int(math.Ceil(maxX - minX))
	vh := int(math.Ceil(maxY - minY))
	x0 := int(math.Floor(minX))
	y0 := int(math.Floor(minY))

	canvas.Startview(opts.Width, opts.Height, x0, y0, vw, vh)
	if opts.Title != "" {
		canvas.Title(opts.Title)
	}
	if opts.Background != "" {
		canvas.Rect(x0, y0, vw, vh, "fill:"+opts.Background)
	}

	canvas.Gstyle(edgeStyle)
	for _, e := range scene.Edges {
		canvas.Line(round(e.X1), round(e.Y1), round(e.X2), round(e.Y2))
	}
	canvas.Gend()

	neighbors := make(map[string]struct{}, len(opts.Neighbors))
	for _, id := range opts.Neighbors {
		neighbors[id] = struct{}{}
	}

	for _, n := range scene.Nodes {
		stroke := shapeStroke
		switch _, isNeighbor := neighbors[n.ID]; {
		case n.ID == opts.Selected:
			stroke = selectStroke
		case isNeighbor:
			stroke = neighborDash
		case n.Pinned:
			stroke = pinnedStroke
		}
		canvas.Gtransform(fmt.Sprintf("translate(%.2f,%.2f)", n.X, n.Y))
		canvas.Path(n.Path, fmt.Sprintf("fill:%s;%s", color(palette, n.ColorIndex), stroke))
		canvas.Text(0, 0, n.Label, labelStyle)
		canvas.Gend()
	}

	canvas.End()
	return ew.err
}

func bounds(scene render.Scene, margin float64) (minX, minY, maxX, maxY float64) {
	if len(scene.Nodes) == 0 {
		return -margin, -margin, margin, margin
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, n := range scene.Nodes {
		minX = math.Min(minX, n.X)
		minY = math.Min(minY, n.Y)
		maxX = math.Max(maxX, n.X)
		maxY = math.Max(maxY, n.Y)
	}
	return minX - margin, minY - margin, maxX + margin, maxY + margin
}

func color(palette []string, i int) string {
	if len(palette) == 0 {
		return fallbackColor
	}
	return palette[i%len(palette)]
}

func round(v float64) int {
	return int(math.Round(v))
}
