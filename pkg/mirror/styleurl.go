package mirror

import (
	"net/url"
	"regexp"
	"strings"
)

// styleURLRe is a lightweight lexer for url(...) occurrences, not a
// CSS parser. Go regexp has no backreferences, so the three quoting
// shapes are spelled out as alternatives; a mismatched pair like
// url('a.png") matches none of them and passes through untouched.
var styleURLRe = regexp.MustCompile(`url\("([^"()]*)"\)|url\('([^'()]*)'\)|url\(([^'"()]*)\)`)

// RewriteStyleURLs absolutizes every url(...) reference inside a CSS
// string. The original quoting style of each occurrence (double,
// single, or none) is preserved, never normalized. Both style
// attributes and style element text go through this one routine.
func RewriteStyleURLs(target *url.URL, css string) string {
	return styleURLRe.ReplaceAllStringFunc(css, func(m string) string {
		parts := styleURLRe.FindStringSubmatch(m)
		switch {
		case strings.HasPrefix(m, `url("`):
			return `url("` + Absolutize(target, parts[1]) + `")`
		case strings.HasPrefix(m, `url('`):
			return `url('` + Absolutize(target, parts[2]) + `')`
		default:
			return `url(` + Absolutize(target, parts[3]) + `)`
		}
	})
}
