package automation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tsvHeader = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"

func tsv(rows ...string) []byte {
	return []byte(tsvHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

func TestParseTSV_MergesWordsOnOneLine(t *testing.T) {
	// "30" and "g" recognized as separate words of the same line must come
	// back as one block so the carb pattern can match across them.
	data := tsv(
		"5\t1\t2\t1\t1\t1\t150\t200\t40\t30\t96.5\t30",
		"5\t1\t2\t1\t1\t2\t195\t202\t20\t28\t91.0\tg",
	)

	blocks := parseTSV(data)
	require.Len(t, blocks, 1)
	assert.Equal(t, "30 g", blocks[0].Text)
	assert.Equal(t, 150, blocks[0].X)
	assert.Equal(t, 200, blocks[0].Y)
	assert.Equal(t, 65, blocks[0].W) // 195+20-150
	assert.Equal(t, 30, blocks[0].H)
}

func TestParseTSV_SeparateLinesStaySeparate(t *testing.T) {
	data := tsv(
		"5\t1\t2\t1\t1\t1\t100\t500\t60\t25\t95.0\t21:00",
		"5\t1\t2\t1\t2\t1\t300\t500\t60\t25\t94.0\t22:00",
	)

	blocks := parseTSV(data)
	require.Len(t, blocks, 2)
	assert.Equal(t, "21:00", blocks[0].Text)
	assert.Equal(t, "22:00", blocks[1].Text)
}

func TestParseTSV_FiltersNonWordsAndLowConfidence(t *testing.T) {
	data := tsv(
		"1\t1\t0\t0\t0\t0\t0\t0\t1080\t1920\t-1\t",        // page row
		"4\t1\t2\t1\t1\t0\t100\t500\t200\t25\t-1\t",       // line row
		"5\t1\t2\t1\t1\t1\t100\t500\t60\t25\t12.0\tnoise", // below confidence
		"5\t1\t2\t1\t1\t2\t170\t500\t60\t25\t88.0\t21:00",
		"5\t1\t2\t1\t1\t3\t240\t500\t10\t25\t90.0\t ", // whitespace only
	)

	blocks := parseTSV(data)
	require.Len(t, blocks, 1)
	assert.Equal(t, "21:00", blocks[0].Text)
}

func TestParseTSV_Empty(t *testing.T) {
	assert.Empty(t, parseTSV(nil))
	assert.Empty(t, parseTSV([]byte(tsvHeader+"\n")))
}

func TestNewTesseractEngine_Defaults(t *testing.T) {
	e := NewTesseractEngine("", "")
	assert.Equal(t, "tesseract", e.path)
	assert.Equal(t, "eng", e.language)

	e = NewTesseractEngine("/opt/tesseract/bin/tesseract", "deu")
	assert.Equal(t, "/opt/tesseract/bin/tesseract", e.path)
	assert.Equal(t, "deu", e.language)
}
