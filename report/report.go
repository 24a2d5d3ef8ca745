// Package report renders a preview pass as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/wudi/pdfocr/session"
)

// Markdown writes one section per page: a heading, the inclusion state and
// either the recognized text in a fenced block or the page's error.
func Markdown(name string, previews []session.PagePreview) []byte {
	var b bytes.Buffer
	included := 0
	for _, pv := range previews {
		if pv.Included {
			included++
		}
	}
	fmt.Fprintf(&b, "# %s\n\n", escapeInline(name))
	fmt.Fprintf(&b, "| Pages | Included |\n|---|---|\n| %d | %d |\n\n", len(previews), included)

	for _, pv := range previews {
		fmt.Fprintf(&b, "## Page %d\n\n", pv.Page.Number)
		switch {
		case !pv.Included:
			b.WriteString("- [ ] excluded from export\n\n")
		case pv.Err != nil:
			b.WriteString("- [x] included in export\n\n")
			fmt.Fprintf(&b, "> **Error:** %s\n\n", escapeInline(pv.Err.Error()))
		default:
			b.WriteString("- [x] included in export\n\n")
			fence := fenceFor(pv.Text)
			fmt.Fprintf(&b, "%stext\n%s\n%s\n\n", fence, strings.TrimRight(pv.Text, "\n"), fence)
		}
	}
	return b.Bytes()
}

// HTML converts Markdown produced by Markdown to an HTML fragment.
func HTML(md []byte) ([]byte, error) {
	conv := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	var out bytes.Buffer
	if err := conv.Convert(md, &out); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return out.Bytes(), nil
}

// fenceFor returns a backtick fence longer than any run inside s.
func fenceFor(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}

var inlineEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
	"<", `\<`, ">", `\>`, "#", `\#`, "|", `\|`, "\n", " ",
)

func escapeInline(s string) string { return inlineEscaper.Replace(s) }
