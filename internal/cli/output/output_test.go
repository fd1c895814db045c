package output_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/schemagen/internal/cli/output"
	"github.com/leapstack-labs/schemagen/internal/cli/testutil"
)

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  output.Mode
		isTTY bool
		want  output.Mode
	}{
		{name: "auto on tty", mode: output.ModeAuto, isTTY: true, want: output.ModeText},
		{name: "auto piped", mode: output.ModeAuto, isTTY: false, want: output.ModeMarkdown},
		{name: "explicit json", mode: output.ModeJSON, isTTY: true, want: output.ModeJSON},
		{name: "explicit text piped", mode: output.ModeText, isTTY: false, want: output.ModeText},
		{name: "empty defaults to auto", mode: "", isTTY: false, want: output.ModeMarkdown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutil.NewTestRenderer(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestPrintlnAndPrintf(t *testing.T) {
	r := testutil.NewTestRendererText()

	r.Println("hello")
	r.Printf("%d tasks\n", 3)
	r.Errorf("warn: %s\n", "oops")

	assert.Equal(t, "hello\n3 tasks\n", r.Output())
	assert.Equal(t, "warn: oops\n", r.ErrorOutput())
}

func TestHeaderMarkdown(t *testing.T) {
	r := testutil.NewTestRendererMarkdown()
	r.Header(2, "Generators")
	assert.Contains(t, r.Output(), "## Generators")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Title", output.FormatHeader(1, "Title"))
	assert.Equal(t, "### Sub", output.FormatHeader(3, "Sub"))
	assert.Equal(t, "- **Tool**: jet@2.11.0", output.FormatKeyValue("Tool", "jet@2.11.0"))
}

func TestRenderTaskTableMarkdown(t *testing.T) {
	r := testutil.NewTestRendererMarkdown()
	r.RenderTaskTable([]output.TaskRow{
		{Task: "generate:main", Status: "success", Duration: "120ms"},
		{Task: "compile", Status: "skipped", Detail: "upstream failed"},
	})

	out := r.Output()
	assert.Contains(t, out, "generate:main")
	assert.Contains(t, out, "| compile")
	assert.Contains(t, out, "upstream failed")
}

func TestRenderTaskTableText(t *testing.T) {
	r := testutil.NewTestRendererText()
	r.RenderTaskTable([]output.TaskRow{
		{Task: "clean:main", Status: "success", Duration: "2ms"},
	})

	out := r.Output()
	assert.Contains(t, out, "clean:main")
	assert.Contains(t, out, "TASK")
}

func TestRenderTableText(t *testing.T) {
	r := testutil.NewTestRendererText()
	r.RenderTable([]string{"Name", "Output"}, [][]string{
		{"main", "gen/main"},
	})

	out := r.Output()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "gen/main")
}
