package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	result, err := p.Process(&types.Teaser{Title: "  Hello World  ", Content: " spaces ", URL: " /a "})
	require.NoError(t, err)
	assert.Equal(t, "Hello World", result.Title)
	assert.Equal(t, "spaces", result.Content)
	assert.Equal(t, "/a", result.URL)
	assert.Equal(t, 1, p.Len())
}

func TestRequiredFieldsMiddleware(t *testing.T) {
	m := &RequiredFieldsMiddleware{RequireURL: true}

	tests := []struct {
		name   string
		teaser types.Teaser
		keep   bool
	}{
		{"complete", types.Teaser{Title: "T", Content: "C", URL: "/a"}, true},
		{"image only", types.Teaser{Title: "T", Image: "i.jpg", URL: "/a"}, true},
		{"no title", types.Teaser{Content: "C", URL: "/a"}, false},
		{"title only", types.Teaser{Title: "T", URL: "/a"}, false},
		{"no url", types.Teaser{Title: "T", Content: "C"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tz := tt.teaser
			got, err := m.Process(&tz)
			require.NoError(t, err)
			assert.Equal(t, tt.keep, got != nil)
		})
	}
}

func TestSanitizeMiddleware(t *testing.T) {
	m := NewSanitizeMiddleware()
	got, err := m.Process(&types.Teaser{Title: "<b>Bitcoin</b> &amp; <i>Ether</i>", Content: "<p>Hello\n\n  <a href=\"x\">link</a></p>"})
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin & Ether", got.Title)
	assert.Equal(t, "Hello link", got.Content)
}

func TestDateNormalizeMiddleware(t *testing.T) {
	m := NewDateNormalizeMiddleware("2006-01-02")

	tests := []struct {
		input    string
		expected string
	}{
		{"January 15, 2024", "2024-01-15"},
		{"2024-01-15", "2024-01-15"},
		{"15/01/2024", "2024-01-15"},
		{"3 giờ trước", "3 giờ trước"},
	}
	for _, tt := range tests {
		got, err := m.Process(&types.Teaser{Date: tt.input})
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got.Date, "input %q", tt.input)
	}
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "failing" }
func (failingMiddleware) Process(*types.Teaser) (*types.Teaser, error) {
	return nil, errors.New("boom")
}

func TestPipelineErrorWrapsStage(t *testing.T) {
	p := New(testLogger)
	p.Use(failingMiddleware{})

	_, err := p.Process(&types.Teaser{Title: "T"})
	var pe *types.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "failing", pe.Stage)
}

func TestDefaultProcessAll(t *testing.T) {
	p := Default(config.ExtractorConfig{}, testLogger)
	in := []types.Teaser{
		{Title: " <b>One</b> ", Content: "first", URL: "/1"},
		{Title: "Two", Content: "second"},
		{Title: "", Image: "x.jpg", URL: "/3"},
		{Title: "Four", Image: "y.jpg", URL: "/4"},
	}
	out, dropped := p.ProcessAll(in)
	assert.Equal(t, 2, dropped)
	require.Len(t, out, 2)
	assert.Equal(t, "One", out[0].Title)
	assert.Equal(t, "/4", out[1].URL)
}
