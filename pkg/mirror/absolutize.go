package mirror

import (
	"net/url"
	"regexp"
	"strings"
)

// PathClass is the classification of a raw resource reference.
type PathClass int

const (
	// OpaqueOrAbsolute covers data:/javascript: payloads and anything
	// that already carries a scheme; these are never rewritten.
	OpaqueOrAbsolute PathClass = iota
	// RootRelative starts with "/" and resolves against the host only.
	RootRelative
	// CurrentRelative resolves against the directory of the target path.
	CurrentRelative
	// ParentRelative starts with "../" and resolves one directory up.
	ParentRelative
	// Unclassified matches none of the patterns and passes through
	// unchanged.
	Unclassified
)

// pathClass is the single character class shared by every relative-path
// pattern. Keeping all patterns on the same class guarantees an input
// lands in exactly one bucket or in none.
const pathClass = `[A-Za-z0-9\-%._~()'!*:@,;+&=?#]`

var (
	schemeRe  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)
	rootRe    = regexp.MustCompile(`^/(?:` + pathClass + `|/)*$`)
	parentRe  = regexp.MustCompile(`^\.\./(?:` + pathClass + `|/)*$`)
	currentRe = regexp.MustCompile(`^(?:` + pathClass + `|/)+$`)
)

// Classify buckets a raw path string. Classification is a pure function
// of the string; the parent check runs before the current check because
// "." and "/" belong to both patterns' alphabets.
func Classify(raw string) PathClass {
	switch {
	case strings.HasPrefix(raw, "data:"), strings.HasPrefix(raw, "javascript:"):
		return OpaqueOrAbsolute
	case schemeRe.MatchString(raw):
		return OpaqueOrAbsolute
	case rootRe.MatchString(raw):
		return RootRelative
	case parentRe.MatchString(raw):
		return ParentRelative
	case currentRe.MatchString(raw):
		return CurrentRelative
	default:
		return Unclassified
	}
}

// Absolutize rewrites a raw resource reference into a fully qualified
// https URL on the target's host. Opaque and already-absolute inputs
// come back unchanged, as does anything that fails to classify: the
// function is total over all string inputs and idempotent, since its
// own output re-classifies as OpaqueOrAbsolute.
func Absolutize(target *url.URL, raw string) string {
	switch Classify(raw) {
	case RootRelative:
		return "https://" + target.Host + raw
	case CurrentRelative:
		return "https://" + target.Host + dropSegments(target.Path, 1) + raw
	case ParentRelative:
		return "https://" + target.Host + dropSegments(target.Path, 2) + strings.TrimPrefix(raw, "../")
	default:
		return raw
	}
}

// dropSegments removes the last n segments of an absolute path and
// returns the remaining directory with its trailing slash. The first
// segment dropped is the "file" part of the path, which is empty when
// the path already ends in a slash.
func dropSegments(p string, n int) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = p[:strings.LastIndex(p, "/")+1]
	for n--; n > 0; n-- {
		trimmed := strings.TrimSuffix(p, "/")
		if trimmed == "" {
			return "/"
		}
		p = trimmed[:strings.LastIndex(trimmed, "/")+1]
	}
	return p
}

// RewriteSrcset absolutizes the path portion of every candidate in a
// srcset attribute value. Descriptor suffixes ("1x", "480w") are kept
// verbatim; candidates are rejoined with bare commas since srcset
// whitespace is insignificant.
func RewriteSrcset(target *url.URL, val string) string {
	candidates := strings.Split(val, ",")
	for i, c := range candidates {
		c = strings.TrimLeft(c, " \t\r\n")
		path, desc, hasDesc := strings.Cut(c, " ")
		path = Absolutize(target, path)
		if hasDesc {
			candidates[i] = path + " " + desc
		} else {
			candidates[i] = path
		}
	}
	return strings.Join(candidates, ",")
}
