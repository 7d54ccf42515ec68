package generation

import (
	"fmt"
	"regexp"
	"strings"
)

var fencedHTML = regexp.MustCompile("(?s)```(?:html|HTML)?[ \t]*\r?\n(.*?)```")

// ExtractHTML pulls the HTML document out of model output. It prefers a
// fenced code block, then the <!DOCTYPE or <html ... </html> span, then the
// trimmed text itself.
func ExtractHTML(text string) (string, error) {
	if m := fencedHTML.FindStringSubmatch(text); m != nil {
		if html := strings.TrimSpace(m[1]); html != "" {
			return html, nil
		}
	}
	lower := strings.ToLower(text)
	start := strings.Index(lower, "<!doctype")
	if start < 0 {
		start = strings.Index(lower, "<html")
	}
	if start >= 0 {
		end := strings.LastIndex(lower, "</html>")
		if end > start {
			return strings.TrimSpace(text[start : end+len("</html>")]), nil
		}
		return strings.TrimSpace(text[start:]), nil
	}
	html := strings.TrimSpace(text)
	if html == "" {
		return "", fmt.Errorf("%w: empty model response", ErrUpstreamGeneration)
	}
	return html, nil
}
