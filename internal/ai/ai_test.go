package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

const articlePage = `<html><head>
<title>Bitcoin vượt mốc 100.000 USD</title>
<meta property="og:image" content="https://cdn.example.com/lead.jpg">
</head><body>
<nav>menu</nav>
<article>
<p>Giá Bitcoin đã tăng mạnh trong phiên giao dịch hôm nay, vượt qua ngưỡng tâm lý quan trọng.</p>
<p>Các nhà phân tích cho rằng dòng tiền từ quỹ ETF là động lực chính của đợt tăng giá lần này.</p>
</article>
</body></html>`

func newTestNormalizer(gen Generator) *Normalizer {
	return NewNormalizer(config.DefaultConfig(), gen, nil, testLogger)
}

func TestNormalizeAIJSON(t *testing.T) {
	gen := &fakeGenerator{response: "Here you go:\n```json\n" +
		`{"title":"Bitcoin lập đỉnh","content":"<h2>Tổng quan</h2><p>Giá tăng <strong>mạnh</strong>.</p>","summary":"Tóm tắt","tags":["bitcoin","etf"],"metadata":{"confidence":0.9}}` +
		"\n```"}
	n := newTestNormalizer(gen)

	res := n.Normalize(context.Background(), articlePage, NormalizeOptions{})
	require.NotNil(t, res)

	assert.Equal(t, TierAI, res.Tier)
	assert.Equal(t, "Bitcoin lập đỉnh", res.Title)
	assert.Equal(t, "Tóm tắt", res.Summary)
	assert.Equal(t, []string{"bitcoin", "etf"}, res.Tags)
	assert.Contains(t, res.Content, "## Tổng quan")
	assert.Contains(t, res.Content, "**mạnh**")
	assert.Equal(t, "https://cdn.example.com/lead.jpg", res.Image, "image falls back to page meta")
	assert.Equal(t, true, res.Metadata["aiProcessed"])
	assert.Equal(t, FormatMarkdown, res.Metadata["format"])
	assert.Equal(t, 0.9, res.Metadata["confidence"])

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "tiếng Việt")
	assert.Contains(t, gen.prompts[0], "Bitcoin vượt mốc")
}

func TestNormalizeAIJSONMissingTitle(t *testing.T) {
	n := newTestNormalizer(&fakeGenerator{response: `{"content":"plain body"}`})

	res := n.Normalize(context.Background(), articlePage, NormalizeOptions{Language: LanguageEN, Format: FormatText})
	assert.Equal(t, TierAI, res.Tier)
	assert.Equal(t, untitled, res.Title)
	assert.Equal(t, "plain body", res.Content)
	assert.NotNil(t, res.Tags)
}

func TestNormalizeFallbackParse(t *testing.T) {
	response := "Title: Thị trường hồi phục\n\nNội dung bài viết dài không có JSON."
	n := newTestNormalizer(&fakeGenerator{response: response})

	res := n.Normalize(context.Background(), articlePage, NormalizeOptions{})
	assert.Equal(t, TierFallbackParse, res.Tier)
	assert.Equal(t, "Thị trường hồi phục", res.Title)
	assert.Equal(t, response, res.Content)
	assert.Equal(t, true, res.Metadata["fallbackParsing"])
	assert.Equal(t, len(response), res.Metadata["rawResponseLength"])
}

func TestNormalizeFallbackParseNoTitleLine(t *testing.T) {
	n := newTestNormalizer(&fakeGenerator{response: "just text"})
	res := n.Normalize(context.Background(), articlePage, NormalizeOptions{})
	assert.Equal(t, untitled, res.Title)
}

func TestNormalizeAIFailureFallsBackToExtraction(t *testing.T) {
	n := newTestNormalizer(&fakeGenerator{err: errors.New("connection refused")})

	res := n.Normalize(context.Background(), articlePage, NormalizeOptions{})
	assert.Equal(t, TierExtractOnly, res.Tier)
	assert.Equal(t, "Bitcoin vượt mốc 100.000 USD", res.Title)
	assert.True(t, strings.HasPrefix(res.Content, "# Bitcoin vượt mốc 100.000 USD\n\n"))
	assert.Contains(t, res.Content, "quỹ ETF")
	assert.NotContains(t, res.Content, "menu")
	assert.Equal(t, true, res.Metadata["aiFailed"])
	assert.Equal(t, "connection refused", res.Metadata["aiError"])
}

func TestNormalizeExtractOnly(t *testing.T) {
	gen := &fakeGenerator{response: "unused"}
	n := newTestNormalizer(gen)

	res := n.Normalize(context.Background(), articlePage, NormalizeOptions{ExtractOnly: true, Format: FormatHTML})
	assert.Empty(t, gen.prompts, "extract-only never calls the model")
	assert.Equal(t, TierExtractOnly, res.Tier)
	assert.True(t, strings.HasPrefix(res.Content, "<h1>Bitcoin vượt mốc 100.000 USD</h1>\n<p>"))
	assert.Equal(t, "https://cdn.example.com/lead.jpg", res.Image)
	assert.Equal(t, true, res.Metadata["extractedOnly"])
	assert.Equal(t, "basic_extraction", res.Metadata["processingMethod"])
	assert.NotContains(t, res.Metadata, "aiFailed")
}

func TestNormalizeWithoutGenerator(t *testing.T) {
	n := newTestNormalizer(nil)
	assert.Equal(t, "none", n.Provider())

	res := n.Normalize(context.Background(), "<html><body><p>short</p></body></html>", NormalizeOptions{Format: FormatText})
	assert.Equal(t, TierExtractOnly, res.Tier)
	assert.Equal(t, untitled, res.Title)
	assert.Equal(t, "short", res.Content)
	assert.Equal(t, true, res.Metadata["aiUnavailable"])
}

func TestBuildPromptTruncates(t *testing.T) {
	markup := strings.Repeat("á", 50)
	p := buildPrompt(markup, LanguageEN, FormatHTML, 10)
	assert.Contains(t, p, strings.Repeat("á", 10)+" ...(truncated)")
	assert.NotContains(t, p, strings.Repeat("á", 11))
	assert.Contains(t, p, "clean HTML")

	p = buildPrompt("short", LanguageEN, FormatMarkdown, 10)
	assert.NotContains(t, p, "(truncated)")
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":"}"}`, extractJSON(`prefix {"a":"}"} suffix`))
	assert.Equal(t, `{"a":{"b":1}}`, extractJSON(`{"a":{"b":1}}{"c":2}`))
	assert.Empty(t, extractJSON("no json"))
	assert.Empty(t, extractJSON(`{"unterminated": 1`))
}

func TestLLMClientOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"rewritten"}}]}`))
	}))
	defer srv.Close()

	c := NewLLMClient(config.AIConfig{Provider: "openai", Model: "gpt-test", Endpoint: srv.URL, APIKey: "sk-test"}, nil, testLogger)
	out, err := c.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "rewritten", out)
}

func TestLLMClientOllama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		_, _ = w.Write([]byte(`{"response":"từ ollama"}`))
	}))
	defer srv.Close()

	c := NewLLMClient(config.AIConfig{Provider: "ollama", Model: "llama3", Endpoint: srv.URL + "/"}, nil, testLogger)
	out, err := c.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "từ ollama", out)
}

func TestLLMClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewLLMClient(config.AIConfig{Provider: "openai", Endpoint: srv.URL}, nil, testLogger)
	_, err := c.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 429")

	c = NewLLMClient(config.AIConfig{Provider: "bard"}, nil, testLogger)
	_, err = c.Generate(context.Background(), "prompt")
	assert.ErrorContains(t, err, "unsupported LLM provider")
}

func TestNormalizeResolvesImageAgainstBaseURL(t *testing.T) {
	page := `<html><head><title>T</title><meta property="og:image" content="/media/lead.png"></head><body><p>x</p></body></html>`
	n := newTestNormalizer(nil)

	res := n.Normalize(context.Background(), page, NormalizeOptions{BaseURL: "https://news.example.com/markets/story-1"})
	assert.Equal(t, "https://news.example.com/media/lead.png", res.Image)
}

func TestLLMClientEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":"  "}`))
	}))
	defer srv.Close()

	c := NewLLMClient(config.AIConfig{Provider: "ollama", Endpoint: srv.URL}, nil, testLogger)
	_, err := c.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, types.ErrGeneratorEmpty)
}
