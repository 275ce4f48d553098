package mirror

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"
)

// DecodeError reports a failure turning response bytes into text. The
// charset decoders substitute invalid byte sequences rather than
// refusing them, so in practice this error does not occur.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding response body: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// decode converts raw response bytes into text. The encoding comes
// from the Content-Type header when present, otherwise from sniffing
// the content (BOM, meta tags); when detection is inconclusive the
// reader falls back to a default encoding, so arbitrary byte input
// always yields a string.
func decode(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body), nil
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	return string(text), nil
}
