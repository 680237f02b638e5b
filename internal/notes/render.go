package notes

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

const noteTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <meta name="description" content="{{.Description}}">
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            line-height: 1.6;
            max-width: 800px;
            margin: 0 auto;
            padding: 2rem 1rem;
        }
        {{if .Color}}header { border-left: 6px solid {{.Color}}; padding-left: 1rem; }{{end}}
        .tags span { background: #eef; border-radius: 3px; padding: 0.1em 0.4em; margin-right: 0.3em; }
        pre { background: #f5f5f5; padding: 1rem; border-radius: 6px; overflow-x: auto; }
        figure img { max-width: 100%; height: auto; border: 1px solid #e0e0e0; }
    </style>
</head>
<body>
    <header>
        <h1>{{.Title}}</h1>
        {{if .Tags}}<p class="tags">{{range .Tags}}<span>#{{.}}</span>{{end}}</p>{{end}}
        <p><time datetime="{{.Updated}}">{{.Updated}}</time></p>
    </header>
    <article>
        {{.Content}}
    </article>
    {{if .Drawing}}<figure><img src="{{.Drawing}}" alt="Drawing"></figure>{{end}}
</body>
</html>`

var noteTmpl = template.Must(template.New("note").Parse(noteTemplate))

type noteTemplateData struct {
	Title       string
	Description string
	Color       template.CSS
	Tags        []string
	Updated     string
	Content     template.HTML
	Drawing     template.URL
}

// RenderMarkdown converts Markdown to sanitized HTML.
func RenderMarkdown(content string) []byte {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(content))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	raw := markdown.Render(doc, renderer)

	return bluemonday.UGCPolicy().SanitizeBytes(raw)
}

// RenderHTML renders a note as a standalone HTML document: the Markdown
// content, its tags and, when present, the drawing inlined as an image.
func RenderHTML(n Note) []byte {
	data := noteTemplateData{
		Title:       n.Title,
		Description: descriptionOf(n.Content),
		Tags:        n.Tags,
		Updated:     n.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Content:     template.HTML(RenderMarkdown(n.Content)),
	}
	if isHexColor(n.Color) {
		data.Color = template.CSS(n.Color)
	}
	if strings.HasPrefix(n.CanvasData, "data:image/png;base64,") {
		data.Drawing = template.URL(n.CanvasData)
	}

	var buf bytes.Buffer
	if err := noteTmpl.Execute(&buf, data); err != nil {
		return []byte("<!DOCTYPE html><html><head><title>Error</title></head><body><h1>Error rendering note</h1></body></html>")
	}
	return buf.Bytes()
}

// descriptionOf is the first non-blank line of content, capped at 160 bytes.
func descriptionOf(content string) string {
	for line := range strings.SplitSeq(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "#>*- "))
		if line == "" {
			continue
		}
		if len(line) > 160 {
			line = strings.ToValidUTF8(line[:160], "")
		}
		return line
	}
	return ""
}

func isHexColor(s string) bool {
	if len(s) != 4 && len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
