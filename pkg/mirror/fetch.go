package mirror

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// FetchError reports a transport-level failure reaching the target
// host. Fetches are not retried; the underlying cause is surfaced to
// the caller.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// forwardedHeaders is the allow-list of client headers passed to the
// origin. No cookies, no auth: this is a read-only mirror, not a
// credentialed fetch.
var forwardedHeaders = []string{"User-Agent", "Accept", "Accept-Language"}

// fetch performs the one outbound GET of a mirroring operation and
// returns the raw body bytes and response headers. The body is read
// whole, bounded by maxBodyBytes; the transport applies no implicit
// decoding. Upstream status codes are not errors, the page a host
// serves is the page that gets mirrored.
func (e *Engine) fetch(target *url.URL, clientHeader http.Header) ([]byte, http.Header, error) {
	req, err := http.NewRequest(http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, nil, &FetchError{URL: target.String(), Err: err}
	}
	for _, name := range forwardedHeaders {
		if v := clientHeader.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, nil, &FetchError{URL: target.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBodyBytes))
	if err != nil {
		return nil, nil, &FetchError{URL: target.String(), Err: err}
	}
	return body, resp.Header, nil
}
