// Package automation drives the paired Android device over adb: dumping the
// UI hierarchy, tapping elements, and capturing screenshots for OCR.
package automation

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-bridge/internal/screen"
)

// remoteDumpPath is where uiautomator writes the hierarchy on the device.
const remoteDumpPath = "/sdcard/nightscout-bridge-ui.xml"

var boundsRe = regexp.MustCompile(`\[(\d+),(\d+)\]\[(\d+),(\d+)\]`)

// Driver executes adb commands against one device.
type Driver struct {
	adbPath string
	serial  string
	log     *zap.Logger
}

// NewDriver creates a driver. An empty serial targets the only connected
// device.
func NewDriver(adbPath, serial string, log *zap.Logger) *Driver {
	if adbPath == "" {
		adbPath = "adb"
	}
	return &Driver{adbPath: adbPath, serial: serial, log: log}
}

func (d *Driver) run(ctx context.Context, args ...string) ([]byte, error) {
	if d.serial != "" {
		args = append([]string{"-s", d.serial}, args...)
	}
	cmd := exec.CommandContext(ctx, d.adbPath, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// RootNode dumps the current UI hierarchy and parses it.
func (d *Driver) RootNode(ctx context.Context) (*screen.Node, error) {
	if _, err := d.run(ctx, "shell", "uiautomator", "dump", remoteDumpPath); err != nil {
		return nil, err
	}
	data, err := d.run(ctx, "exec-out", "cat", remoteDumpPath)
	if err != nil {
		return nil, err
	}
	return ParseHierarchy(data)
}

// Click taps the center of the node's bounds.
func (d *Driver) Click(ctx context.Context, n *screen.Node) error {
	x := strconv.Itoa(n.Bounds.CenterX())
	y := strconv.Itoa(n.Bounds.CenterY())
	d.log.Debug("tapping element", zap.String("x", x), zap.String("y", y), zap.String("id", n.ID))
	_, err := d.run(ctx, "shell", "input", "tap", x, y)
	return err
}

// Back presses the hardware back key.
func (d *Driver) Back(ctx context.Context) error {
	_, err := d.run(ctx, "shell", "input", "keyevent", "4")
	return err
}

// Screenshot captures the current screen as PNG bytes.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	return d.run(ctx, "exec-out", "screencap", "-p")
}

// xmlNode mirrors one uiautomator dump element.
type xmlNode struct {
	Text        string    `xml:"text,attr"`
	ContentDesc string    `xml:"content-desc,attr"`
	ResourceID  string    `xml:"resource-id,attr"`
	Class       string    `xml:"class,attr"`
	Clickable   string    `xml:"clickable,attr"`
	Bounds      string    `xml:"bounds,attr"`
	Children    []xmlNode `xml:"node"`
}

type xmlHierarchy struct {
	XMLName xml.Name  `xml:"hierarchy"`
	Nodes   []xmlNode `xml:"node"`
}

// ParseHierarchy converts a uiautomator dump into the node tree the
// extractors traverse.
func ParseHierarchy(data []byte) (*screen.Node, error) {
	var h xmlHierarchy
	if err := xml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parsing hierarchy: %w", err)
	}
	if len(h.Nodes) == 0 {
		return nil, fmt.Errorf("hierarchy has no nodes")
	}
	if len(h.Nodes) == 1 {
		return convertNode(h.Nodes[0]), nil
	}

	// Multiple top-level windows get a synthetic root.
	root := &screen.Node{Role: "hierarchy"}
	for _, n := range h.Nodes {
		root.Children = append(root.Children, convertNode(n))
	}
	return root, nil
}

func convertNode(x xmlNode) *screen.Node {
	n := &screen.Node{
		Text:      x.Text,
		Label:     x.ContentDesc,
		Role:      x.Class,
		ID:        x.ResourceID,
		Clickable: x.Clickable == "true",
		Bounds:    parseBounds(x.Bounds),
	}
	for _, c := range x.Children {
		n.Children = append(n.Children, convertNode(c))
	}
	return n
}

func parseBounds(s string) screen.Rect {
	m := boundsRe.FindStringSubmatch(s)
	if m == nil {
		return screen.Rect{}
	}
	x1, _ := strconv.Atoi(m[1])
	y1, _ := strconv.Atoi(m[2])
	x2, _ := strconv.Atoi(m[3])
	y2, _ := strconv.Atoi(m[4])
	return screen.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}
