package console

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_LogAndClear(t *testing.T) {
	c := New()
	c.Log("Interpreting...")
	c.Clear(1)
	c.Log("Interpreted successfully after 0.001 seconds.")
	c.Log("Rendering...")
	c.Clear(1)
	c.Log("Rendered successfully after 0.001 seconds.")

	assert.Equal(t, []string{
		"Interpreted successfully after 0.001 seconds.",
		"Rendered successfully after 0.001 seconds.",
	}, c.Lines())
}

func TestConsole_ClearAll(t *testing.T) {
	c := New()
	c.Log("a")
	c.Log("b")
	c.Clear(0)
	assert.Empty(t, c.Lines())

	c.Log("c")
	c.Clear(5)
	assert.Empty(t, c.Lines(), "clearing more lines than exist empties the console")
}

func TestConsole_LinesIsACopy(t *testing.T) {
	c := New()
	c.Log("a")
	lines := c.Lines()
	lines[0] = "changed"
	assert.Equal(t, []string{"a"}, c.Lines())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want Kind
	}{
		{"Interpreted successfully after 0.001 seconds.", KindSuccess},
		{"Rendered successfully after 1.250 seconds.", KindSuccess},
		{"Evaluated operations after 0.002 seconds.", KindSuccess},
		{"Lamp.nodes > 1 = true", KindSuccess},
		{"Lamp.nodes > 9 = false", KindFailure},
		{"Interpretation failed after 0.001 seconds.", KindFailure},
		{`  Lamp: dependency "Ghost" of "Lamp" is undefined`, KindFailure},
		{"Big: States - 120, Transitions - 300 (Too large to render)", KindWarning},
		{"Total Operations: 2 (Pass: 1, Fail: 1)", KindSummary},
		{"Light: States - 2, Transitions - 2", KindPlain},
		{"", KindPlain},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.line))
		})
	}
}

func TestRender_PlainWithoutColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	c := New()
	c.Log("Interpreted successfully after 0.001 seconds.")
	c.Log("Light: States - 2, Transitions - 2")

	var buf bytes.Buffer
	require.NoError(t, c.Render(&buf))
	assert.Equal(t, "Interpreted successfully after 0.001 seconds.\nLight: States - 2, Transitions - 2\n", buf.String())
}

func TestRender_Colored(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	require.NoError(t, RenderLines(&buf, []string{"Interpretation failed after 0.001 seconds."}))
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "Interpretation failed after 0.001 seconds.")
}
