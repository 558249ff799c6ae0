// Package newsletter renders a roundup article into the subject and bodies
// of the weekly email. Rendering is pure: the same article and options always
// produce byte-identical output.
package newsletter

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"regexp"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/solweekly/weekly-roundup/internal/domain"
)

const (
	subjectSuffix  = " | Solana Weekly Roundup"
	testPrefix     = "[TEST] "
	htmlPreviewLen = 200
	textPreviewLen = 500
	excerptBlocks  = 3
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	markupChars = regexp.MustCompile(`[#*\[\]()]`)
	newlines    = regexp.MustCompile(`\n+`)
)

// Options varies per send. GeneratedAt is stamped into the footer and must be
// supplied by the caller at send time.
type Options struct {
	Test        bool
	GeneratedAt time.Time
}

type view struct {
	Title       string
	Description string
	Date        string
	Excerpt     htmltemplate.HTML
	HTMLPreview string
	TextPreview string
	ArticleURL  string
	SiteURL     string
	Test        bool
	Year        int
	GeneratedAt string
}

// Renderer holds the parsed templates and markdown pipeline.
type Renderer struct {
	siteURL string
	md      goldmark.Markdown
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

func NewRenderer(siteURL string) (*Renderer, error) {
	h, err := htmltemplate.ParseFS(templateFS, "templates/newsletter.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	t, err := texttemplate.ParseFS(templateFS, "templates/newsletter.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	return &Renderer{
		siteURL: strings.TrimRight(siteURL, "/"),
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithXHTML()),
		),
		html: h,
		text: t,
	}, nil
}

// Subject builds the email subject line.
func Subject(a *domain.Article, test bool) string {
	s := a.Title + subjectSuffix
	if test {
		s = testPrefix + s
	}
	return s
}

// Render produces the subject, HTML body and plain-text body for a.
func (r *Renderer) Render(a *domain.Article, opts Options) (*domain.Email, error) {
	excerpt, err := r.excerpt(a.Body)
	if err != nil {
		return nil, err
	}

	v := view{
		Title:       a.Title,
		Description: a.Description,
		Excerpt:     excerpt,
		HTMLPreview: Preview(a.Body, htmlPreviewLen),
		TextPreview: Preview(a.Body, textPreviewLen),
		ArticleURL:  r.siteURL + "/roundup/" + a.Slug,
		SiteURL:     r.siteURL,
		Test:        opts.Test,
		Year:        opts.GeneratedAt.UTC().Year(),
		GeneratedAt: opts.GeneratedAt.UTC().Format(time.RFC1123),
	}
	if !a.Date.IsZero() {
		v.Date = a.Date.Format("January 2, 2006")
	}

	var hb bytes.Buffer
	if err := r.html.Execute(&hb, v); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	var tb bytes.Buffer
	if err := r.text.Execute(&tb, v); err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}

	return &domain.Email{
		Subject: Subject(a, opts.Test),
		HTML:    strings.TrimSpace(hb.String()),
		Text:    strings.TrimSpace(tb.String()),
	}, nil
}

// excerpt renders the leading markdown blocks of body. Raw HTML in the
// source is dropped by goldmark's default renderer.
func (r *Renderer) excerpt(body string) (htmltemplate.HTML, error) {
	blocks := strings.SplitN(strings.TrimSpace(body), "\n\n", excerptBlocks+1)
	if len(blocks) > excerptBlocks {
		blocks = blocks[:excerptBlocks]
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(strings.Join(blocks, "\n\n")), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return htmltemplate.HTML(buf.String()), nil //nolint:gosec
}

// Preview strips markdown punctuation, folds newlines and cuts the result to
// n runes followed by an ellipsis.
func Preview(body string, n int) string {
	s := markupChars.ReplaceAllString(body, "")
	s = newlines.ReplaceAllString(s, " ")
	if runes := []rune(s); len(runes) > n {
		s = string(runes[:n])
	}
	return strings.TrimSpace(s) + "..."
}
