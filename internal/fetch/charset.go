package fetch

import (
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Decode converts body to UTF-8. A known label wins; otherwise the
// Content-Type parameter, a byte order mark or a <meta> declaration is
// used, falling back to UTF-8 when the bytes are valid UTF-8.
func Decode(body []byte, label, contentType string) (string, error) {
	var enc encoding.Encoding
	if l := strings.TrimSpace(label); l != "" {
		enc, _ = charset.Lookup(l)
	}
	if enc == nil {
		enc, _, _ = charset.DetermineEncoding(body, contentType)
	}
	if enc == nil || enc == encoding.Nop {
		return string(body), nil
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", label, err)
	}
	return string(out), nil
}
