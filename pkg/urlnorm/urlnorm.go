// Package urlnorm canonicalizes raw client input into one uniform
// absolute URL before it reaches the mirroring engine.
package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalid marks input that cannot be turned into an absolute http
// or https URL.
var ErrInvalid = errors.New("invalid target URL")

// Normalize trims the input, defaults the scheme to http when none is
// present (including protocol-relative "//host" input), lowercases
// scheme and host, strips default ports and the fragment, and returns
// the canonical string. Errors wrap ErrInvalid.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalid)
	}
	if strings.HasPrefix(raw, "//") {
		raw = "http:" + raw
	} else if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalid, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalid, raw)
	}
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}
	u.Fragment = ""
	return u.String(), nil
}
