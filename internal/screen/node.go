// Package screen models the accessibility node tree of the scraped app and
// provides the traversal helpers all extractors are built on.
package screen

import "strings"

// maxTraversalDepth caps every tree walk. The host app's trees are shallow;
// anything deeper is a malformed dump and must not take the walker down.
const maxTraversalDepth = 20

// Node is one element of the UI tree as dumped by the automation host.
// Snapshots are immutable per observation; no identity persists across
// polling cycles.
type Node struct {
	Text      string // visible text, empty if none
	Label     string // accessibility label (content-desc)
	Role      string // element role/class identifier
	ID        string // stable resource identifier, empty if none
	Clickable bool
	Bounds    Rect
	Children  []*Node
}

// Rect is an axis-aligned bounding box in screen pixels.
type Rect struct {
	X1, Y1, X2, Y2 int
}

// CenterX returns the horizontal center of the rectangle.
func (r Rect) CenterX() int { return (r.X1 + r.X2) / 2 }

// CenterY returns the vertical center of the rectangle.
func (r Rect) CenterY() int { return (r.Y1 + r.Y2) / 2 }

// CollectText flattens the tree into all non-blank text and label strings in
// document order (pre-order, parent before children). Several parsers rely
// on "label, then value in the next element" adjacency, so the order is part
// of the contract.
func CollectText(root *Node) []string {
	var out []string
	collectText(root, 0, &out)
	return out
}

func collectText(n *Node, depth int, out *[]string) {
	if n == nil || depth > maxTraversalDepth {
		return
	}
	if s := strings.TrimSpace(n.Text); s != "" {
		*out = append(*out, s)
	}
	if s := strings.TrimSpace(n.Label); s != "" {
		*out = append(*out, s)
	}
	for _, child := range n.Children {
		collectText(child, depth+1, out)
	}
}
