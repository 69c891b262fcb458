package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()
	assert.Contains(t, mimeTypes, "text/html")
	assert.Contains(t, mimeTypes, "application/xhtml+xml")
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		CorpusID: "salt-road",
		URI:      "/data/corpora/salt-road/chapter-03.html",
		MIMEType: "text/html",
		Content:  []byte("<html><head><title>The Reef</title></head><body><p>The hull groaned.</p></body></html>"),
	}

	doc, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "chapter-03.html", doc.ID)
	assert.Equal(t, "salt-road", doc.CorpusID)
	assert.Equal(t, raw.URI, doc.URI)
	assert.Equal(t, "The Reef", doc.Title)
	assert.Equal(t, "The hull groaned.", doc.Content)
}

func TestNormalise_NilInput(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_TitleFallsBackToFilename(t *testing.T) {
	raw := &domain.RawDocument{URI: "/corpus/red_tide.htm", Content: []byte("<title>  </title><p>x</p>")}

	doc, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "red tide", doc.Title)
}

func TestNormalise_EBookPage(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <style>body { font-family: serif; }</style>
    <title>The Salt Road &mdash; Chapter I</title>
</head>
<body>
    <h2>CHAPTER I</h2>
    <p>The <i>Marigold</i> sailed at dawn.</p>
    <p>&ldquo;Hold fast,&rdquo; said&nbsp;the captain.</p>
    <script>track();</script>
    <!-- page 12 -->
</body>
</html>`

	doc, err := New().Normalise(context.Background(), &domain.RawDocument{URI: "c1.html", Content: []byte(page)})
	require.NoError(t, err)

	assert.Equal(t, "The Salt Road — Chapter I", doc.Title)
	assert.Equal(t, "CHAPTER I\nThe Marigold sailed at dawn.\n“Hold fast,” said the captain.", doc.Content)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple paragraph", "<p>Hello World</p>", "Hello World"},
		{"nested tags", "<div><p><strong>Bold</strong> text</p></div>", "Bold text"},
		{"script removed", "<p>Before</p><script>alert('x');</script><p>After</p>", "Before\nAfter"},
		{"style removed", "<style>.foo { color: red; }</style><p>Content</p>", "Content"},
		{"noscript removed", "<p>Content</p><noscript>No JS fallback</noscript>", "Content"},
		{"head removed", "<head><meta charset='utf-8'><title>Title</title></head><body>Content</body>", "Content"},
		{"br to newline", "Line 1<br>Line 2<br/>Line 3", "Line 1\nLine 2\nLine 3"},
		{"entities decoded", "<p>&lt;tag&gt; &amp; &quot;quotes&quot;</p>", "<tag> & \"quotes\""},
		{"comments removed", "<p>Before</p><!-- comment --><p>After</p>", "Before\nAfter"},
		{"list items", "<ul><li>Item 1</li><li>Item 2</li></ul>", "Item 1\nItem 2"},
		{"links keep text", `<a href="https://example.com">Click here</a>`, "Click here"},
		{"images removed", `<p>See <img src="image.png" alt="Image"> here</p>`, "See here"},
		{"svg removed", `<p>Before</p><svg width="100"><circle cx="50"/></svg><p>After</p>`, "Before\nAfter"},
		{"paragraph with attributes", `<p class="dialogue">Ahoy</p>`, "Ahoy"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stripHTML(tc.input))
		})
	}
}
