// Package content reads weekly roundup articles from markdown files with
// YAML frontmatter.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/solweekly/weekly-roundup/internal/domain"
)

const wordsPerMinute = 200

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	extensions  = []string{".mdx", ".md"}
	dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}
)

// Source resolves articles by slug or recency.
type Source interface {
	Latest(ctx context.Context) (*domain.Article, error)
	BySlug(ctx context.Context, slug string) (*domain.Article, error)
}

type frontmatter struct {
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Week        int      `yaml:"week"`
	Description string   `yaml:"description"`
	Categories  []string `yaml:"categories"`
}

// FileSource loads articles from a directory on every call, so newly
// published files are picked up without a restart.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// All returns every article, newest first. A missing directory yields an
// empty list.
func (s *FileSource) All(ctx context.Context) ([]*domain.Article, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read content dir: %w", err)
	}

	var articles []*domain.Article
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			continue
		}
		slug, ok := slugFromName(e.Name())
		if !ok {
			continue
		}
		a, err := s.load(filepath.Join(s.dir, e.Name()), slug)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		if articles[i].Date.Equal(articles[j].Date) {
			return articles[i].Slug > articles[j].Slug
		}
		return articles[i].Date.After(articles[j].Date)
	})
	return articles, nil
}

// Latest returns the most recent article by date.
func (s *FileSource) Latest(ctx context.Context) (*domain.Article, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, domain.ErrArticleNotFound
	}
	return all[0], nil
}

// BySlug returns the article stored under slug. Slugs that could escape the
// content directory are reported as not found.
func (s *FileSource) BySlug(ctx context.Context, slug string) (*domain.Article, error) {
	if !slugPattern.MatchString(slug) {
		return nil, domain.ErrArticleNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, ext := range extensions {
		path := filepath.Join(s.dir, slug+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return s.load(path, slug)
	}
	return nil, domain.ErrArticleNotFound
}

func (s *FileSource) load(path, slug string) (*domain.Article, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	a, err := Parse(slug, raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return a, nil
}

// Parse splits raw into YAML frontmatter and markdown body.
func Parse(slug string, raw []byte) (*domain.Article, error) {
	meta, body, err := splitFrontmatter(raw)
	if err != nil {
		return nil, err
	}

	var fm frontmatter
	if len(meta) > 0 {
		if err := yaml.Unmarshal(meta, &fm); err != nil {
			return nil, fmt.Errorf("decode frontmatter: %w", err)
		}
	}

	a := &domain.Article{
		Slug:        slug,
		Title:       fm.Title,
		Description: fm.Description,
		Week:        fm.Week,
		Categories:  fm.Categories,
		Body:        body,
		ReadingTime: readingTime(body),
	}
	if a.Title == "" {
		a.Title = slug
	}
	if fm.Date != "" {
		d, err := parseDate(fm.Date)
		if err != nil {
			return nil, err
		}
		a.Date = d
	}
	return a, nil
}

func splitFrontmatter(raw []byte) ([]byte, string, error) {
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	if !strings.HasPrefix(text, "---\n") {
		return nil, text, nil
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, "", errors.New("unterminated frontmatter")
	}
	meta := rest[:end]
	body := strings.TrimPrefix(rest[end+len("\n---"):], "\n")
	return []byte(meta), body, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func readingTime(body string) int {
	words := len(strings.Fields(body))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

func slugFromName(name string) (string, bool) {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			slug := strings.TrimSuffix(name, ext)
			return slug, slugPattern.MatchString(slug)
		}
	}
	return "", false
}

var _ Source = (*FileSource)(nil)
