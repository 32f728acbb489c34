package liveclient

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

var htmlMinifier = sync.OnceValue(func() *minify.M {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	return m
})

// normalizeHTML collapses insignificant whitespace in rendered HTML so
// back-to-back patches whose only difference is template indentation do
// not churn the DOM. Plain text without markup is collapsed directly,
// and the input comes back unchanged if minification fails.
func normalizeHTML(src string) string {
	if !strings.Contains(src, "<") {
		return strings.Join(strings.Fields(src), " ")
	}
	out, err := htmlMinifier().String("text/html", src)
	if err != nil {
		return src
	}
	return out
}
