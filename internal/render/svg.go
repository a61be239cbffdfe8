// Package render writes a decorated layout as SVG, JSON or text.
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"

	"github.com/ppiankov/claimgraph/internal/focus"
	"github.com/ppiankov/claimgraph/internal/model"
)

const (
	nodeW   = 260
	nodeH   = 72
	margin  = 48
	header  = 56
	dimmedO = 0.25
)

var (
	colorBackdrop  = color.RGBA{0xF8, 0xF9, 0xFB, 0xFF}
	colorEdge      = color.RGBA{0xB8, 0xC0, 0xCC, 0xFF}
	colorEdgeFocus = color.RGBA{0x25, 0x63, 0xEB, 0xFF}
	colorStroke    = color.RGBA{0x33, 0x41, 0x55, 0xFF}
	colorMatch     = color.RGBA{0xF5, 0x9E, 0x0B, 0xFF}
	colorText      = color.RGBA{0x11, 0x18, 0x27, 0xFF}
	colorSubtle    = color.RGBA{0x4B, 0x55, 0x63, 0xFF}
)

func typeColor(t model.NodeType) color.RGBA {
	switch t {
	case model.NodeTypeDirection:
		return color.RGBA{0xDB, 0xEA, 0xFE, 0xFF}
	case model.NodeTypeQuestion:
		return color.RGBA{0xED, 0xE9, 0xFE, 0xFF}
	case model.NodeTypeHypothesis:
		return color.RGBA{0xFE, 0xF3, 0xC7, 0xFF}
	case model.NodeTypeSupporting:
		return color.RGBA{0xDC, 0xFC, 0xE7, 0xFF}
	case model.NodeTypeOpposing:
		return color.RGBA{0xFE, 0xE2, 0xE2, 0xFF}
	default:
		return color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	}
}

// SVG draws the view. Layout coordinates are node centers; the canvas is
// sized to fit them with a margin.
func SVG(w io.Writer, v focus.View, title string) error {
	minX, minY, maxX, maxY := bounds(v)
	width := int(maxX-minX) + nodeW + 2*margin
	height := int(maxY-minY) + nodeH + 2*margin + header

	// Translate a layout center to the node's top-left corner
	place := func(x, y float64) (int, int) {
		return int(math.Round(x-minX)) + margin, int(math.Round(y-minY)) + margin + header
	}

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Text(margin, 36, title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(width-margin, 36, fmt.Sprintf("nodes: %d  edges: %d  matches: %d", len(v.Nodes), len(v.Edges), v.Matches),
		fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;text-anchor:end", css(colorSubtle)))

	centers := make(map[string][2]int, len(v.Nodes))
	dimmed := make(map[string]bool, len(v.Nodes))
	for _, n := range v.Nodes {
		x, y := place(n.X, n.Y)
		centers[n.ID] = [2]int{x, y}
		dimmed[n.ID] = n.Dimmed
	}

	for _, e := range v.Edges {
		from, okFrom := centers[e.Source]
		to, okTo := centers[e.Target]
		if !okFrom || !okTo {
			continue
		}
		stroke, width, opacity := colorEdge, 2, 1.0
		if e.Focused {
			stroke, width = colorEdgeFocus, 3
		} else if dimmed[e.Source] || dimmed[e.Target] {
			opacity = dimmedO
		}
		canvas.Line(from[0]+nodeW, from[1]+nodeH/2, to[0], to[1]+nodeH/2,
			fmt.Sprintf("stroke:%s;stroke-width:%d;opacity:%.2f", css(stroke), width, opacity))
	}

	for _, n := range v.Nodes {
		x, y := centers[n.ID][0], centers[n.ID][1]
		opacity := 1.0
		if n.Dimmed {
			opacity = dimmedO
		}
		stroke, strokeW := colorStroke, 1
		if n.Matched {
			stroke, strokeW = colorMatch, 3
		}
		canvas.Group(fmt.Sprintf(`id="node-%s" opacity="%.2f"`, escapeAttr(n.ID), opacity))
		canvas.Roundrect(x, y, nodeW, nodeH, 8, 8,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%d", css(typeColor(n.Claim.NodeType)), css(stroke), strokeW))
		canvas.Text(x+10, y+22, truncate(n.Claim.Claim, 34),
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
		canvas.Text(x+10, y+42, fmt.Sprintf("conf %.2f  imp %.2f", n.Claim.Confidence, n.Claim.Importance),
			fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
		label := string(n.Claim.NodeType)
		if label == "" {
			label = "claim"
		}
		canvas.Text(x+10, y+60, fmt.Sprintf("%s · %s", label, n.ID),
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
		canvas.Gend()
	}

	canvas.End()
	return nil
}

func bounds(v focus.View) (minX, minY, maxX, maxY float64) {
	if len(v.Nodes) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, n := range v.Nodes {
		minX = math.Min(minX, n.X)
		minY = math.Min(minY, n.Y)
		maxX = math.Max(maxX, n.X)
		maxY = math.Max(maxY, n.Y)
	}
	return minX, minY, maxX, maxY
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

func escapeAttr(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '"', '<', '>', '&', '\'':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
