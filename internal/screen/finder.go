package screen

import "strings"

// ElementKind identifies an interactive element the bridge needs to locate.
type ElementKind int

// Element kinds
const (
	InfoButton ElementKind = iota
	CloseButton
	MenuButton
	BackButton
	RotateButton
)

func (k ElementKind) String() string {
	switch k {
	case InfoButton:
		return "info"
	case CloseButton:
		return "close"
	case MenuButton:
		return "menu"
	case BackButton:
		return "back"
	case RotateButton:
		return "rotate"
	default:
		return "unknown"
	}
}

// keywordSet holds the multilingual surface forms for one element kind.
// exact entries are single-character glyph markers matched whole; substrings
// are matched by case-insensitive containment. Adding a language is a data
// change here, not a code change.
type keywordSet struct {
	exact      []string
	substrings []string
}

// Element keywords for the three UI locales the host app ships (en, de, fr).
var elementKeywords = map[ElementKind]keywordSet{
	InfoButton: {
		exact:      []string{"i", "ⓘ"},
		substrings: []string{"info", "information", "help", "hilfe", "aide"},
	},
	CloseButton: {
		exact:      []string{"×", "✕", "x"},
		substrings: []string{"close", "dismiss", "schließen", "schliessen", "fermer"},
	},
	MenuButton: {
		substrings: []string{"menu", "menü", "navigation", "drawer", "burger"},
	},
	BackButton: {
		substrings: []string{"back", "navigate up", "zurück", "zurueck", "nach oben", "retour"},
	},
	RotateButton: {
		substrings: []string{"rotate", "landscape", "drehen", "querformat", "pivoter", "paysage"},
	},
}

// FindElement returns the best clickable node matching the keyword set for
// the given kind, or nil when the element is absent this cycle (callers must
// treat nil as "feature unavailable", not as an error).
//
// Every kind takes the first match in pre-order, except RotateButton, which
// takes the deepest match: the host app stacks overlapping layers that each
// expose a rotate control, and the front-most (visually topmost) layer is
// the deepest one in the dumped tree.
func FindElement(root *Node, kind ElementKind) *Node {
	kw, ok := elementKeywords[kind]
	if !ok {
		return nil
	}
	if kind == RotateButton {
		node, _ := findDeepest(root, kw, 0)
		return node
	}
	return findFirst(root, kw, 0)
}

func findFirst(n *Node, kw keywordSet, depth int) *Node {
	if n == nil || depth > maxTraversalDepth {
		return nil
	}
	if n.Clickable && matchesKeywords(n, kw) {
		return n
	}
	for _, child := range n.Children {
		if found := findFirst(child, kw, depth+1); found != nil {
			return found
		}
	}
	return nil
}

func findDeepest(n *Node, kw keywordSet, depth int) (*Node, int) {
	if n == nil || depth > maxTraversalDepth {
		return nil, -1
	}
	var best *Node
	bestDepth := -1
	if n.Clickable && matchesKeywords(n, kw) {
		best, bestDepth = n, depth
	}
	for _, child := range n.Children {
		// Strictly deeper wins; ties keep the earlier sibling.
		if found, d := findDeepest(child, kw, depth+1); found != nil && d > bestDepth {
			best, bestDepth = found, d
		}
	}
	return best, bestDepth
}

func matchesKeywords(n *Node, kw keywordSet) bool {
	for _, field := range []string{n.Label, n.Text, n.ID} {
		if field == "" {
			continue
		}
		lower := strings.ToLower(strings.TrimSpace(field))
		for _, e := range kw.exact {
			if lower == e {
				return true
			}
		}
		for _, sub := range kw.substrings {
			if strings.Contains(lower, sub) {
				return true
			}
		}
	}
	return false
}
