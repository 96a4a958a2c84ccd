package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		done, total, width int
		want               string
	}{
		{0, 4, 8, "░░░░░░░░   0%"},
		{2, 4, 8, "████░░░░  50%"},
		{4, 4, 8, "████████ 100%"},
		{0, 0, 2, "░░░░░   0%"},
		{9, 4, 5, "█████ 225%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProgressBar(tt.done, tt.total, tt.width))
	}
}

func TestThemeByName(t *testing.T) {
	assert.Equal(t, "neon", ThemeByName(" NEON ").Name)
	assert.Equal(t, "mono", ThemeByName("mono").Name)
	assert.Equal(t, "classic", ThemeByName("unknown").Name)
	for _, name := range ThemeNames() {
		assert.Equal(t, name, ThemeByName(name).Name)
	}
}

func TestCounter(t *testing.T) {
	for _, name := range ThemeNames() {
		assert.Contains(t, ThemeByName(name).Counter(2, 5), "2 / 5 completed")
	}
}

func TestMonoPanel(t *testing.T) {
	out := ThemeByName("mono").Panel("one", "three")
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "┌"))
	assert.Contains(t, lines[1], "one")
	assert.Contains(t, lines[2], "three")
}

func TestOKFail(t *testing.T) {
	th := ThemeByName("mono")
	var buf bytes.Buffer
	th.OK(&buf, "added")
	th.Fail(&buf, "nope")
	assert.Equal(t, "ok added\nerror: nope\n", buf.String())
}

func TestCheckbox(t *testing.T) {
	th := ThemeByName("mono")
	assert.Equal(t, "[x]", th.Checkbox(true))
	assert.Equal(t, "[ ]", th.Checkbox(false))
}
