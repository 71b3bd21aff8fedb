package automation

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mrcode/nightscout-bridge/internal/graph"
)

// minWordConfidence drops tesseract words it was mostly guessing at.
const minWordConfidence = 40.0

// OCREngine recognizes text blocks in a PNG screenshot.
type OCREngine interface {
	Recognize(ctx context.Context, png []byte) ([]graph.TextBlock, error)
}

// TesseractEngine shells out to the tesseract binary in TSV mode.
type TesseractEngine struct {
	path     string
	language string
}

// NewTesseractEngine creates an engine. Empty arguments select the defaults
// ("tesseract", "eng").
func NewTesseractEngine(path, language string) *TesseractEngine {
	if path == "" {
		path = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &TesseractEngine{path: path, language: language}
}

// Recognize runs tesseract on the PNG and returns line-level text blocks.
// PSM 11 (sparse text) fits a graph view where fragments float freely.
func (e *TesseractEngine) Recognize(ctx context.Context, png []byte) ([]graph.TextBlock, error) {
	cmd := exec.CommandContext(ctx, e.path, "stdin", "stdout", "-l", e.language, "--psm", "11", "tsv")
	cmd.Stdin = bytes.NewReader(png)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseTSV(out.Bytes()), nil
}

// tsvWord is one level-5 row of tesseract's TSV output.
type tsvWord struct {
	block, par, line       int
	left, top, width, high int
	text                   string
}

// parseTSV extracts confident words and merges words sharing a text line
// into one block, so markers split across words ("30" "g") stay matchable.
func parseTSV(data []byte) []graph.TextBlock {
	var words []tsvWord

	for i, line := range strings.Split(string(data), "\n") {
		if i == 0 { // header
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		level, _ := strconv.Atoi(cols[0])
		if level != 5 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < minWordConfidence {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}

		var w tsvWord
		w.block, _ = strconv.Atoi(cols[2])
		w.par, _ = strconv.Atoi(cols[3])
		w.line, _ = strconv.Atoi(cols[4])
		w.left, _ = strconv.Atoi(cols[6])
		w.top, _ = strconv.Atoi(cols[7])
		w.width, _ = strconv.Atoi(cols[8])
		w.high, _ = strconv.Atoi(cols[9])
		w.text = text
		words = append(words, w)
	}

	return mergeLines(words)
}

func mergeLines(words []tsvWord) []graph.TextBlock {
	type key struct{ block, par, line int }

	var order []key
	lines := make(map[key][]tsvWord)
	for _, w := range words {
		k := key{w.block, w.par, w.line}
		if _, seen := lines[k]; !seen {
			order = append(order, k)
		}
		lines[k] = append(lines[k], w)
	}

	var blocks []graph.TextBlock
	for _, k := range order {
		ws := lines[k]
		texts := make([]string, len(ws))
		left, top := ws[0].left, ws[0].top
		right, bottom := ws[0].left+ws[0].width, ws[0].top+ws[0].high
		for i, w := range ws {
			texts[i] = w.text
			if w.left < left {
				left = w.left
			}
			if w.top < top {
				top = w.top
			}
			if w.left+w.width > right {
				right = w.left + w.width
			}
			if w.top+w.high > bottom {
				bottom = w.top + w.high
			}
		}
		blocks = append(blocks, graph.TextBlock{
			Text: strings.Join(texts, " "),
			X:    left,
			Y:    top,
			W:    right - left,
			H:    bottom - top,
		})
	}
	return blocks
}
