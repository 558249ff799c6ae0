package content_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/solweekly/weekly-roundup/internal/content"
	"github.com/solweekly/weekly-roundup/internal/domain"
)

func writeArticle(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func newSource(t *testing.T) *content.FileSource {
	t.Helper()
	dir := t.TempDir()
	writeArticle(t, dir, "week-1.mdx", "---\ntitle: Week 1\ndate: 2025-01-03\nweek: 1\ndescription: First\ncategories: [defi, nft]\n---\n# Hello\n\nBody one.\n")
	writeArticle(t, dir, "week-2.mdx", "---\ntitle: Week 2\ndate: \"2025-01-10\"\nweek: 2\ndescription: Second\n---\nBody two.\n")
	writeArticle(t, dir, "notes.txt", "ignored")
	return content.NewFileSource(dir)
}

func TestFileSource_Latest(t *testing.T) {
	src := newSource(t)

	a, err := src.Latest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Slug != "week-2" {
		t.Fatalf("expected week-2, got %s", a.Slug)
	}
	if a.Date.Format("2006-01-02") != "2025-01-10" {
		t.Fatalf("unexpected date: %v", a.Date)
	}
}

func TestFileSource_BySlug(t *testing.T) {
	src := newSource(t)

	a, err := src.BySlug(context.Background(), "week-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Title != "Week 1" || a.Week != 1 || len(a.Categories) != 2 {
		t.Fatalf("unexpected article: %+v", a)
	}
	if a.Body != "# Hello\n\nBody one.\n" {
		t.Fatalf("unexpected body: %q", a.Body)
	}
	if a.ReadingTime != 1 {
		t.Fatalf("expected reading time 1, got %d", a.ReadingTime)
	}
}

func TestFileSource_NotFound(t *testing.T) {
	src := newSource(t)

	for _, slug := range []string{"week-9", "../secrets", "", "Week-1"} {
		t.Run(slug, func(t *testing.T) {
			_, err := src.BySlug(context.Background(), slug)
			if err != domain.ErrArticleNotFound {
				t.Fatalf("expected ErrArticleNotFound, got %v", err)
			}
		})
	}
}

func TestFileSource_EmptyDir(t *testing.T) {
	src := content.NewFileSource(filepath.Join(t.TempDir(), "absent"))

	all, err := src.All(context.Background())
	if err != nil || len(all) != 0 {
		t.Fatalf("expected empty list, got %v (err=%v)", all, err)
	}
	if _, err := src.Latest(context.Background()); err != domain.ErrArticleNotFound {
		t.Fatalf("expected ErrArticleNotFound, got %v", err)
	}
}

func TestParse_BadFrontmatter(t *testing.T) {
	if _, err := content.Parse("x", []byte("---\ntitle: [unclosed\n---\nbody")); err == nil {
		t.Fatal("expected YAML error")
	}
	if _, err := content.Parse("x", []byte("---\ntitle: t\nbody without end")); err == nil {
		t.Fatal("expected unterminated frontmatter error")
	}
	if _, err := content.Parse("x", []byte("---\ndate: next tuesday\n---\n")); err == nil {
		t.Fatal("expected date error")
	}
}
