// Package preview renders the active artifact into a standalone document,
// a sandboxed frame, and a downloadable archive.
package preview

import (
	"bytes"
	"fmt"
	"html"
	"text/template"

	"github.com/ashureev/sitecraft/internal/domain"
)

// TailwindCDN is the utility stylesheet loader injected into every document.
const TailwindCDN = "https://cdn.tailwindcss.com"

// PlaceholderMessage is shown when there is no active artifact.
const PlaceholderMessage = "Generate a website to preview it here"

// FrameSandbox lets the artifact run its own script but keeps it in an
// opaque origin, away from the host page.
const FrameSandbox = "allow-scripts"

// DocumentCSP is sent with standalone documents served by the host so they
// get the same isolation when opened in their own tab.
const DocumentCSP = "sandbox allow-scripts allow-forms allow-popups"

// The artifact's markup, styles and script are inserted verbatim.
var documentTmpl = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <script src="{{.Tailwind}}"></script>
  <style>
{{.CSS}}
  </style>
</head>
<body>
{{.HTML}}
  <script>
{{.JavaScript}}
  </script>
</body>
</html>
`))

type documentData struct {
	Title      string
	Tailwind   string
	CSS        string
	HTML       string
	JavaScript string
}

// Document composes the standalone document for w.
func Document(w *domain.GeneratedWebsite) (string, error) {
	if w == nil {
		return "", fmt.Errorf("compose document: no website")
	}
	title := w.Title
	if title == "" {
		title = "Generated Website"
	}
	var buf bytes.Buffer
	err := documentTmpl.Execute(&buf, documentData{
		Title:      html.EscapeString(title),
		Tailwind:   TailwindCDN,
		CSS:        w.CSS,
		HTML:       w.HTML,
		JavaScript: w.JavaScript,
	})
	if err != nil {
		return "", fmt.Errorf("compose document: %w", err)
	}
	return buf.String(), nil
}

// Frame returns iframe markup that embeds w's document via srcdoc.
func Frame(w *domain.GeneratedWebsite) (string, error) {
	doc, err := Document(w)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`<iframe title="Website Preview" sandbox=%q referrerpolicy="no-referrer" srcdoc="%s"></iframe>`,
		FrameSandbox, html.EscapeString(doc)), nil
}

// View is what the preview panel shows.
type View struct {
	Empty       bool   `json:"empty"`
	Message     string `json:"message,omitempty"`
	ID          string `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	WebsiteType string `json:"website_type,omitempty"`
	CreatedOn   string `json:"created_on,omitempty"`
	HasScript   bool   `json:"has_script,omitempty"`
	Frame       string `json:"frame,omitempty"`
}

// NewView builds the panel model for w, or the placeholder when w is nil.
func NewView(w *domain.GeneratedWebsite) (View, error) {
	if w == nil {
		return View{Empty: true, Message: PlaceholderMessage}, nil
	}
	frame, err := Frame(w)
	if err != nil {
		return View{}, err
	}
	v := View{
		ID:          w.ID.String(),
		Title:       w.Title,
		WebsiteType: w.WebsiteType.Label(),
		HasScript:   w.HasScript(),
		Frame:       frame,
	}
	if t, ok := w.CreatedAt.Time(); ok {
		v.CreatedOn = t.Format("Jan 2, 2006")
	}
	return v, nil
}
