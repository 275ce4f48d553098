package mirror

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookingglass/pkg/cache"
)

const testPage = `<html><head>
<link href="http://example.com/x.css" rel="stylesheet">
<style>body { background: url('/bg.png'); }</style>
</head><body>
<p>Read more at http://example.com/about</p>
<img src="../img/a.png" srcset="a.png 1x, b.png 2x">
<div style="background:url(tile.png)">tile</div>
<a href="/next.html">next</a>
</body></html>`

func newUpstream(t *testing.T, fetches *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(fetches, 1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, testPage)
	}))
}

func TestMirrorEndToEnd(t *testing.T) {
	var fetches int64
	srv := newUpstream(t, &fetches)
	defer srv.Close()

	e := New(Config{
		UpgradeInsecure: true,
		Cache:           cache.NewMemory(0),
		Logger:          zerolog.Nop(),
	})

	target := srv.URL + "/dir/page.html"
	host := mustParse(t, srv.URL).Host

	out, err := e.Mirror(target, http.Header{})
	require.NoError(t, err)

	// Parent-relative src: one directory deep, so ../ lands at the root.
	assert.Contains(t, out, `src="https://`+host+`/img/a.png"`)
	// srcset candidates keep their descriptors.
	assert.Contains(t, out, `srcset="https://`+host+`/dir/a.png 1x,https://`+host+`/dir/b.png 2x"`)
	// Root-relative href.
	assert.Contains(t, out, `href="https://`+host+`/next.html"`)
	// The http:// link was upgraded before rewriting and left
	// host-qualified as-is.
	assert.Contains(t, out, `href="https://example.com/x.css"`)
	// Style element and style attribute both rewritten, quoting kept.
	assert.Contains(t, out, `url('https://`+host+`/bg.png')`)
	assert.Contains(t, out, `url(https://`+host+`/dir/tile.png)`)
	// The blunt global upgrade also rewrites prose. Documented behavior.
	assert.Contains(t, out, "https://example.com/about")

	// Second request for the same URL is served from the cache with no
	// second outbound fetch.
	again, err := e.Mirror(target, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.Equal(t, int64(1), atomic.LoadInt64(&fetches))
}

func TestRewriteStyleElementEmitsRawCSS(t *testing.T) {
	op := operation{target: mustParse(t, "https://example.com/page.html")}
	out, err := op.rewrite(`<html><head><style>body { background: url('/bg.png'); }</style></head><body></body></html>`)
	require.NoError(t, err)

	// The style element is a raw-text context: the rewritten CSS must
	// keep its literal quotes, not HTML entities.
	assert.Contains(t, out, `url('https://example.com/bg.png')`)
	assert.NotContains(t, out, "&#39;")
	assert.NotContains(t, out, "&amp;")
}

func TestMirrorUpgradeInsecureDisabled(t *testing.T) {
	var fetches int64
	srv := newUpstream(t, &fetches)
	defer srv.Close()

	e := New(Config{Logger: zerolog.Nop()})

	out, err := e.Mirror(srv.URL+"/dir/page.html", http.Header{})
	require.NoError(t, err)
	assert.Contains(t, out, "http://example.com/about")
	assert.Contains(t, out, `href="http://example.com/x.css"`)
}

func TestMirrorWithoutCache(t *testing.T) {
	var fetches int64
	srv := newUpstream(t, &fetches)
	defer srv.Close()

	e := New(Config{Logger: zerolog.Nop()})
	_, err := e.Mirror(srv.URL+"/p.html", http.Header{})
	require.NoError(t, err)
	_, err = e.Mirror(srv.URL+"/p.html", http.Header{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&fetches))
}

func TestMirrorFetchFailureWritesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL + "/gone.html"
	srv.Close()

	gw := cache.NewMemory(0)
	e := New(Config{Cache: gw, Logger: zerolog.Nop()})

	_, err := e.Mirror(target, http.Header{})
	require.Error(t, err)
	assert.False(t, gw.Has(target))
}

func TestMirrorDomainNotAllowed(t *testing.T) {
	e := New(Config{
		AllowedDomains: []string{"example.org"},
		Logger:         zerolog.Nop(),
	})
	_, err := e.Mirror("https://evil.test/page.html", http.Header{})
	require.ErrorIs(t, err, ErrDomainNotAllowed)
}

func TestMirrorAllowedDomainPrefixMatch(t *testing.T) {
	var fetches int64
	srv := newUpstream(t, &fetches)
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	e := New(Config{
		AllowedDomains: []string{u.Hostname()},
		Logger:         zerolog.Nop(),
	})
	_, err = e.Mirror(srv.URL+"/p.html", http.Header{})
	require.NoError(t, err)
}
