package ai

import (
	"fmt"
	"unicode/utf8"
)

// Output languages and formats accepted by Normalize.
const (
	LanguageVI = "vi"
	LanguageEN = "en"

	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatText     = "text"
)

const responseSchema = `{
  "title": "...",
  "image": "...",
  "content": "...",
  "summary": "...",
  "tags": ["...", "..."],
  "metadata": {"wordCount": 0, "readingTime": 0, "confidence": 0.0}
}`

const promptVI = `Bạn là một biên tập viên tài chính chuyên nghiệp với nhiều năm kinh nghiệm.

NHIỆM VỤ: Viết lại hoàn toàn nội dung bài báo dưới đây thành một bài báo tài chính chuyên nghiệp bằng tiếng Việt, chi tiết và đầy đủ.

HTML CONTENT:
%s

YÊU CẦU:
1. Cấu trúc: mở đầu nêu thông tin quan trọng nhất, phân tích chi tiết, bối cảnh, tác động đến thị trường và nhà đầu tư, triển vọng.
2. Giữ nguyên mọi số liệu từ bài gốc, không bịa đặt số liệu, không nêu nguồn gốc bài viết.
3. Văn phong chuyên nghiệp, dễ hiểu, giải thích thuật ngữ kỹ thuật.
4. Định dạng nội dung: %s.
5. Liên hệ với thị trường Việt Nam khi phù hợp.

Chỉ trả về một đối tượng JSON theo định dạng:
%s

RESPONSE:`

const promptEN = `You are a professional financial journalist with many years of experience.

TASK: Completely rewrite the article below into a detailed, professional financial article in English.

HTML CONTENT:
%s

REQUIREMENTS:
1. Structure: a lead with the most important facts, detailed analysis, background, market and investor impact, outlook.
2. Keep every figure from the original intact, never invent numbers, never reveal the source.
3. Professional yet accessible writing; explain technical terms.
4. Content format: %s.

Return only one JSON object in this shape:
%s

RESPONSE:`

func formatLabel(format string) string {
	switch format {
	case FormatHTML:
		return "clean HTML (<h2>, <h3>, <p>, <strong>, <ul><li>)"
	case FormatText:
		return "plain text"
	default:
		return "Markdown"
	}
}

// truncateRunes cuts s to at most n characters, reporting whether it cut.
func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}

// buildPrompt embeds the first maxChars characters of markup into the
// language-specific rewrite prompt.
func buildPrompt(markup, language, format string, maxChars int) string {
	body, cut := truncateRunes(markup, maxChars)
	if cut {
		body += " ...(truncated)"
	}
	tmpl := promptEN
	if language == LanguageVI {
		tmpl = promptVI
	}
	return fmt.Sprintf(tmpl, body, formatLabel(format), responseSchema)
}
