// Package mirror implements the fetch-decode-rewrite engine: it
// retrieves a page's HTML, decodes it charset-correctly, rewrites
// every embedded resource reference so the page renders when served
// from a different origin, and returns the serialized result. One page
// per request; resource bytes are never fetched, only the markup.
package mirror

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"lookingglass/pkg/cache"
)

// ErrDomainNotAllowed is returned before any fetch when an allow-list
// is configured and the target host is not on it.
var ErrDomainNotAllowed = errors.New("domain not allowed")

// Config configures an Engine. Zero values fall back to the defaults
// noted per field.
type Config struct {
	// UserAgent is sent upstream when the client supplied none.
	UserAgent string
	// Timeout bounds the outbound fetch. Default: 15s.
	Timeout time.Duration
	// MaxBodyBytes bounds the response body read. Default: 10MB.
	MaxBodyBytes int64
	// UpgradeInsecure enables the global http:// -> https:// text
	// substitution before parsing. It is blunt: literal http://
	// occurrences in prose and scripts are upgraded too.
	UpgradeInsecure bool
	// AllowedDomains, when non-empty, restricts which hosts may be
	// mirrored. Matching is by prefix, as in a "host or any port of
	// it" list.
	AllowedDomains []string
	// Cache is the external gateway consulted before fetching and
	// populated after rewriting. Nil disables caching.
	Cache  cache.Gateway
	Logger zerolog.Logger
}

// Engine mirrors pages. It holds only immutable configuration; all
// per-request state lives in values local to each Mirror call, so one
// Engine serves any number of concurrent requests without locking.
type Engine struct {
	client          *http.Client
	cache           cache.Gateway
	userAgent       string
	maxBodyBytes    int64
	upgradeInsecure bool
	allowedDomains  []string
	log             zerolog.Logger
}

func New(cfg Config) *Engine {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; lookingglass/1.0)"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 * 1024 * 1024
	}
	return &Engine{
		client:          &http.Client{Timeout: cfg.Timeout},
		cache:           cfg.Cache,
		userAgent:       cfg.UserAgent,
		maxBodyBytes:    cfg.MaxBodyBytes,
		upgradeInsecure: cfg.UpgradeInsecure,
		allowedDomains:  cfg.AllowedDomains,
		log:             cfg.Logger,
	}
}

// Mirror fetches the page at targetURL and returns its serialized,
// rewritten markup. targetURL must already be normalized and absolute;
// clientHeader is the inbound request's headers, of which only the
// forwarding allow-list reaches the origin. On a cache hit the stored
// document is returned as-is with no outbound fetch. On failure
// nothing is written to the cache.
func (e *Engine) Mirror(targetURL string, clientHeader http.Header) (string, error) {
	target, err := url.Parse(targetURL)
	if err != nil {
		return "", fmt.Errorf("parsing target URL %q: %w", targetURL, err)
	}
	if len(e.allowedDomains) > 0 && !hostAllowed(target.Host, e.allowedDomains) {
		return "", fmt.Errorf("%w: %s", ErrDomainNotAllowed, target.Host)
	}

	key := target.String()
	if e.cache != nil && e.cache.Has(key) {
		if doc, ok := e.cache.Get(key); ok {
			e.log.Debug().Str("url", key).Msg("cache hit")
			return doc, nil
		}
	}

	body, header, err := e.fetch(target, clientHeader)
	if err != nil {
		return "", err
	}
	text, err := decode(body, header.Get("Content-Type"))
	if err != nil {
		return "", err
	}
	if e.upgradeInsecure {
		text = strings.ReplaceAll(text, "http://", "https://")
	}

	op := operation{target: target}
	out, err := op.rewrite(text)
	if err != nil {
		return "", err
	}

	if e.cache != nil {
		e.cache.Put(key, out)
	}
	e.log.Info().Str("url", key).Int("refs", len(op.refs)).Msg("mirrored")
	return out, nil
}

// operation carries the state of one mirroring request: the immutable
// target URL, the document tree it owns, and the references found in
// it. Nothing here survives the request or is shared with another.
type operation struct {
	target *url.URL
	doc    *goquery.Document
	refs   []AssetRef
}

func (op *operation) rewrite(text string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", fmt.Errorf("parsing document: %w", err)
	}
	op.doc = doc
	op.refs = locateAssets(doc)
	for _, ref := range op.refs {
		op.rewriteRef(ref)
	}
	return doc.Html()
}

func (op *operation) rewriteRef(ref AssetRef) {
	switch ref.Kind {
	case RefHref, RefSrc:
		name := ref.Kind.attr()
		if v, ok := ref.Node.Attr(name); ok {
			ref.Node.SetAttr(name, Absolutize(op.target, v))
		}
	case RefSrcset:
		if v, ok := ref.Node.Attr("srcset"); ok {
			ref.Node.SetAttr("srcset", RewriteSrcset(op.target, v))
		}
	case RefStyleAttr:
		if v, ok := ref.Node.Attr("style"); ok {
			ref.Node.SetAttr("style", RewriteStyleURLs(op.target, v))
		}
	case RefStyleText:
		setRawText(ref.Node, RewriteStyleURLs(op.target, ref.Node.Text()))
	}
}

// setRawText replaces a node's children with a plain text node.
// goquery's SetText HTML-escapes its input, and a style element is a
// raw-text context where entities are never decoded back, so escaping
// would corrupt the CSS.
func setRawText(s *goquery.Selection, text string) {
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = n.FirstChild {
			n.RemoveChild(c)
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

func hostAllowed(host string, allowed []string) bool {
	for _, a := range allowed {
		if a != "" && strings.HasPrefix(host, a) {
			return true
		}
	}
	return false
}
