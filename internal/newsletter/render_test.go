package newsletter_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solweekly/weekly-roundup/internal/domain"
	"github.com/solweekly/weekly-roundup/internal/newsletter"
)

var article = &domain.Article{
	Slug:        "week-12",
	Title:       "Firedancer Ships",
	Description: "Validator client news & more",
	Date:        time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC),
	Body:        "## Highlights\n\nThe **new** client is live. [Docs](https://docs.example)\n\nSecond block.\n\nThird block.\n\nFourth block <script>alert(1)</script>",
}

func newRenderer(t *testing.T) *newsletter.Renderer {
	t.Helper()
	r, err := newsletter.NewRenderer("https://www.solweekly.xyz/")
	require.NoError(t, err)
	return r
}

func TestRender_Deterministic(t *testing.T) {
	r := newRenderer(t)
	at := time.Date(2025, 3, 22, 9, 0, 0, 0, time.UTC)

	first, err := r.Render(article, newsletter.Options{GeneratedAt: at})
	require.NoError(t, err)
	second, err := r.Render(article, newsletter.Options{GeneratedAt: at})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRender_Content(t *testing.T) {
	r := newRenderer(t)

	email, err := r.Render(article, newsletter.Options{GeneratedAt: time.Date(2025, 3, 22, 9, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	assert.Equal(t, "Firedancer Ships | Solana Weekly Roundup", email.Subject)
	assert.Contains(t, email.HTML, `href="https://www.solweekly.xyz/roundup/week-12"`)
	assert.Contains(t, email.HTML, "March 21, 2025")
	assert.Contains(t, email.HTML, "<strong>new</strong>")
	assert.Contains(t, email.HTML, "Validator client news &amp; more")
	assert.Contains(t, email.HTML, "&copy; 2025")
	assert.NotContains(t, email.HTML, "<script>")
	assert.NotContains(t, email.HTML, "TEST EMAIL")

	assert.Contains(t, email.Text, "Read full roundup: https://www.solweekly.xyz/roundup/week-12")
	assert.Contains(t, email.Text, "Validator client news & more")
	assert.NotContains(t, email.Text, "TEST EMAIL")
}

func TestRender_TestBanner(t *testing.T) {
	r := newRenderer(t)

	email, err := r.Render(article, newsletter.Options{Test: true, GeneratedAt: time.Now()})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(email.Subject, "[TEST] "))
	assert.Contains(t, email.HTML, "TEST EMAIL")
	assert.True(t, strings.HasPrefix(email.Text, "*** TEST EMAIL ***"))
}

func TestRender_FooterTimestampFollowsSendTime(t *testing.T) {
	r := newRenderer(t)

	a, err := r.Render(article, newsletter.Options{GeneratedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	b, err := r.Render(article, newsletter.Options{GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	assert.NotEqual(t, a.HTML, b.HTML)
	assert.Contains(t, b.HTML, "&copy; 2026")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "Hello world link...", newsletter.Preview("# Hello\n\nworld [link]", 200))
	assert.Equal(t, "abc...", newsletter.Preview("abcdef", 3))
	assert.Equal(t, "ñé...", newsletter.Preview("ñéü", 2))
}
