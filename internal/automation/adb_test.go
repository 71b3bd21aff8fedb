package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/nightscout-bridge/internal/screen"
)

const sampleDump = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" content-desc="" clickable="false" bounds="[0,0][1080,1920]">
    <node index="0" text="142" resource-id="com.medtronic.minimed:id/sg_value" class="android.widget.TextView" content-desc="" clickable="false" bounds="[400,600][680,760]"/>
    <node index="1" text="" resource-id="com.medtronic.minimed:id/info_button" class="android.widget.ImageButton" content-desc="Information" clickable="true" bounds="[900,100][1000,200]"/>
    <node index="2" text="mg/dL" resource-id="" class="android.widget.TextView" content-desc="" clickable="false" bounds="[460,770][620,820]"/>
  </node>
</hierarchy>`

func TestParseHierarchy(t *testing.T) {
	root, err := ParseHierarchy([]byte(sampleDump))
	require.NoError(t, err)

	assert.Equal(t, "android.widget.FrameLayout", root.Role)
	require.Len(t, root.Children, 3)

	value := root.Children[0]
	assert.Equal(t, "142", value.Text)
	assert.Equal(t, "com.medtronic.minimed:id/sg_value", value.ID)
	assert.Equal(t, screen.Rect{X1: 400, Y1: 600, X2: 680, Y2: 760}, value.Bounds)
	assert.False(t, value.Clickable)

	info := root.Children[1]
	assert.Equal(t, "Information", info.Label)
	assert.True(t, info.Clickable)
	assert.Equal(t, 950, info.Bounds.CenterX())
	assert.Equal(t, 150, info.Bounds.CenterY())
}

func TestParseHierarchy_FeedsCollectText(t *testing.T) {
	root, err := ParseHierarchy([]byte(sampleDump))
	require.NoError(t, err)

	texts := screen.CollectText(root)
	assert.Equal(t, []string{"142", "Information", "mg/dL"}, texts)
}

func TestParseHierarchy_MultipleWindows(t *testing.T) {
	dump := `<hierarchy>
  <node text="main" class="android.widget.FrameLayout" bounds="[0,0][1080,1920]"/>
  <node text="dialog" class="android.widget.FrameLayout" bounds="[100,400][980,1500]"/>
</hierarchy>`

	root, err := ParseHierarchy([]byte(dump))
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "main", root.Children[0].Text)
	assert.Equal(t, "dialog", root.Children[1].Text)
}

func TestParseHierarchy_Invalid(t *testing.T) {
	_, err := ParseHierarchy([]byte("not xml"))
	assert.Error(t, err)

	_, err = ParseHierarchy([]byte("<hierarchy></hierarchy>"))
	assert.Error(t, err)
}

func TestParseBounds(t *testing.T) {
	assert.Equal(t, screen.Rect{X1: 10, Y1: 20, X2: 30, Y2: 40}, parseBounds("[10,20][30,40]"))
	assert.Equal(t, screen.Rect{}, parseBounds("garbage"))
	assert.Equal(t, screen.Rect{}, parseBounds(""))
}
