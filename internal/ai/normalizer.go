package ai

import (
	"context"
	"encoding/json"
	"html"
	"log/slog"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/observability"
	"github.com/IshaanNene/newsdesk/internal/parser"
)

const untitled = "Untitled Article"

// Result tiers, recorded in metrics and metadata.
const (
	TierAI            = "ai"
	TierFallbackParse = "fallback_parse"
	TierExtractOnly   = "extract_only"
)

// NormalizeOptions controls one normalization.
type NormalizeOptions struct {
	ExtractOnly bool
	Language    string
	Format      string
	// BaseURL resolves relative image URLs; empty uses the configured origin.
	BaseURL string
}

func (o *NormalizeOptions) defaults() {
	if o.Language == "" {
		o.Language = LanguageVI
	}
	if o.Format == "" {
		o.Format = FormatMarkdown
	}
}

// Result is a normalized article.
type Result struct {
	Title    string
	Image    string
	Content  string
	Summary  string
	Tags     []string
	Metadata map[string]any
	Tier     string
}

// Normalizer turns article markup into a structured article. The three
// tiers are: AI JSON, heuristic parse of the AI text, DOM extraction.
type Normalizer struct {
	gen      Generator
	provider string
	model    string
	maxChars int
	markers  []string
	meta     *parser.MetaExtractor
	markdown *md.Converter
	ugc      *bluemonday.Policy
	strict   *bluemonday.Policy
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewNormalizer creates a Normalizer. gen may be nil, in which case every
// call takes the DOM extraction path.
func NewNormalizer(cfg *config.Config, gen Generator, metrics *observability.Metrics, logger *slog.Logger) *Normalizer {
	provider, model := cfg.AI.Provider, cfg.AI.Model
	if gen == nil {
		provider, model = "none", ""
	}
	return &Normalizer{
		gen:      gen,
		provider: provider,
		model:    model,
		maxChars: cfg.AI.MaxInputChars,
		markers:  cfg.Extractor.OptimizerMarkers,
		meta:     parser.NewMetaExtractor(cfg.Extractor.Origin, cfg.Extractor.OptimizerMarkers),
		markdown: md.NewConverter("", true, nil),
		ugc:      bluemonday.UGCPolicy(),
		strict:   bluemonday.StrictPolicy(),
		metrics:  metrics,
		logger:   logger.With("component", "normalizer"),
	}
}

// Provider returns the provider name recorded on processed articles.
func (n *Normalizer) Provider() string { return n.provider }

// Model returns the model name recorded on processed articles.
func (n *Normalizer) Model() string { return n.model }

// Normalize always returns a usable result; AI failures degrade to the
// lower tiers and are flagged in Metadata.
func (n *Normalizer) Normalize(ctx context.Context, markup string, opts NormalizeOptions) *Result {
	opts.defaults()
	meta := n.metaExtractor(opts.BaseURL)

	if opts.ExtractOnly || n.gen == nil {
		res := n.extractOnly(meta, markup, opts.Format)
		if !opts.ExtractOnly {
			res.Metadata["aiUnavailable"] = true
		}
		n.metrics.RecordNormalize(n.provider, res.Tier)
		return res
	}

	prompt := buildPrompt(markup, opts.Language, opts.Format, n.maxChars)
	n.logger.Debug("calling llm", "language", opts.Language, "format", opts.Format, "prompt_length", len(prompt))

	response, err := n.gen.Generate(ctx, prompt)
	if err != nil {
		n.logger.Warn("llm call failed, falling back to extraction", "error", err)
		res := n.extractOnly(meta, markup, opts.Format)
		res.Metadata["aiFailed"] = true
		res.Metadata["aiError"] = err.Error()
		n.metrics.RecordNormalize(n.provider, res.Tier)
		return res
	}

	res := n.parseResponse(response, opts.Format)
	if res.Image == "" {
		if pm, err := meta.Extract(markup); err == nil {
			res.Image = pm.Image
		}
	}
	n.metrics.RecordNormalize(n.provider, res.Tier)
	return res
}

type aiPayload struct {
	Title    string         `json:"title"`
	Image    string         `json:"image"`
	Content  string         `json:"content"`
	Summary  string         `json:"summary"`
	Tags     []string       `json:"tags"`
	Metadata map[string]any `json:"metadata"`
}

func (n *Normalizer) parseResponse(response, format string) *Result {
	if raw := extractJSON(response); raw != "" {
		var p aiPayload
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			meta := p.Metadata
			if meta == nil {
				meta = map[string]any{}
			}
			meta["aiProcessed"] = true
			meta["format"] = format
			meta["rawResponseLength"] = len(response)

			title := strings.TrimSpace(p.Title)
			if title == "" {
				title = untitled
			}
			tags := p.Tags
			if tags == nil {
				tags = []string{}
			}
			return &Result{
				Title:    title,
				Image:    strings.TrimSpace(p.Image),
				Content:  n.convert(p.Content, format),
				Summary:  strings.TrimSpace(p.Summary),
				Tags:     tags,
				Metadata: meta,
				Tier:     TierAI,
			}
		} else {
			n.logger.Warn("llm json parse failed", "error", err)
		}
	}

	return &Result{
		Title:   fallbackTitle(response),
		Content: n.convert(response, format),
		Tags:    []string{},
		Metadata: map[string]any{
			"aiProcessed":       true,
			"format":            format,
			"fallbackParsing":   true,
			"rawResponseLength": len(response),
		},
		Tier: TierFallbackParse,
	}
}

// fallbackTitle takes the first line labelled as a title and strips the
// label.
func fallbackTitle(response string) string {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "title") && !strings.Contains(lower, "tiêu đề") {
			continue
		}
		if i := strings.Index(line, ":"); i >= 0 {
			line = line[i+1:]
		}
		line = strings.Trim(strings.TrimSpace(line), `"*# `)
		if line != "" {
			return line
		}
	}
	return untitled
}

func looksLikeHTML(s string) bool {
	return strings.Contains(s, "</") || strings.Contains(s, "<p>") || strings.Contains(s, "<br")
}

// convert coerces content into the requested format.
func (n *Normalizer) convert(content, format string) string {
	content = strings.TrimSpace(content)
	switch format {
	case FormatHTML:
		return strings.TrimSpace(n.ugc.Sanitize(content))
	case FormatText:
		return parser.NormalizeWhitespace(html.UnescapeString(n.strict.Sanitize(content)))
	default:
		if !looksLikeHTML(content) {
			return content
		}
		out, err := n.markdown.ConvertString(n.ugc.Sanitize(content))
		if err != nil {
			n.logger.Warn("markdown conversion failed", "error", err)
			return content
		}
		return strings.TrimSpace(out)
	}
}

// metaExtractor resolves against the origin of baseURL when it parses.
func (n *Normalizer) metaExtractor(baseURL string) *parser.MetaExtractor {
	if baseURL == "" {
		return n.meta
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return n.meta
	}
	return parser.NewMetaExtractor(u.Scheme+"://"+u.Host, n.markers)
}

func (n *Normalizer) extractOnly(m *parser.MetaExtractor, markup, format string) *Result {
	meta, err := m.Extract(markup)
	if err != nil {
		n.logger.Warn("page meta extraction failed", "error", err)
	}
	title := meta.Title
	if title == "" {
		title = untitled
	}

	content := parser.ExtractMainContent(markup)
	if content == "" {
		content = parser.BodyText(markup)
	}

	switch format {
	case FormatMarkdown:
		content = "# " + title + "\n\n" + content
	case FormatHTML:
		paras := strings.Split(content, "\n\n")
		for i, p := range paras {
			paras[i] = html.EscapeString(p)
		}
		content = "<h1>" + html.EscapeString(title) + "</h1>\n<p>" + strings.Join(paras, "</p>\n<p>") + "</p>"
	}

	return &Result{
		Title:   title,
		Image:   meta.Image,
		Content: content,
		Tags:    []string{},
		Metadata: map[string]any{
			"extractedOnly":    true,
			"wordCount":        len(strings.Fields(content)),
			"processingMethod": "basic_extraction",
		},
		Tier: TierExtractOnly,
	}
}
