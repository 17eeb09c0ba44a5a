package extract

import (
	"net/url"
	"strings"
)

// Signature is the dedup key for a candidate URL. Two URLs with the
// same host and normalized path are considered the same candidate,
// regardless of query string or fragment.
type Signature struct {
	Host string
	Path string
}

// SignatureOf computes the dedup signature for a raw URL. It never
// fails: a URL that cannot be parsed gets an exact-string signature so
// malformed inputs are still retained and deduplicated verbatim.
func SignatureOf(raw string) Signature {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Signature{Host: raw}
	}

	host := strings.ToLower(u.Host)
	switch strings.ToLower(u.Scheme) {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}

	path := u.Path
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}

	return Signature{Host: host, Path: path}
}
