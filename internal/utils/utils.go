package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrEmptyURL    = errors.New("empty url")
	ErrMissingHost = errors.New("missing host")
)

// CanonicalizeOptions controls optional canonicalization policies.
type CanonicalizeOptions struct {
	StripTrailingSlash bool   // treat /a and /a/ the same (root "/" is kept)
	DefaultScheme      string // scheme assumed for schemeless input; empty requires a scheme
}

// Canonicalize returns a deterministic canonical URL string.
//
//	"HTTPS://ChatGPT.com:443/backend-api/conversation/#x" -> "https://chatgpt.com/backend-api/conversation/"
//	"https://例え.テスト/a"                                 -> "https://xn--r8jz45g.xn--zckzah/a"
func Canonicalize(raw string, opts CanonicalizeOptions) (string, error) {
	u, err := parseCanonical(raw, opts)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Origin returns scheme://host[:port] of raw in canonical form.
func Origin(raw string) (string, error) {
	u, err := parseCanonical(raw, CanonicalizeOptions{})
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

func parseCanonical(raw string, opts CanonicalizeOptions) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &url.Error{Op: "canonicalize", URL: raw, Err: ErrEmptyURL}
	}

	if opts.DefaultScheme != "" && !strings.Contains(raw, "://") {
		raw = opts.DefaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, &url.Error{Op: "canonicalize", URL: raw, Err: ErrMissingHost}
	}

	u.Scheme = strings.ToLower(u.Scheme)

	// Lowercase host and convert IDN -> punycode
	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}

	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}

	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	cleanPath := "/"
	if u.Path != "" {
		cleanPath = path.Clean(u.Path)
		if strings.HasSuffix(u.Path, "/") && cleanPath != "/" && !opts.StripTrailingSlash {
			cleanPath += "/"
		}
	}
	u.Path = cleanPath
	u.RawPath = ""

	// Sort keys and values so equal queries compare equal.
	q := u.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := url.Values{}
	for _, k := range keys {
		values := q[k]
		sort.Strings(values)
		for _, v := range values {
			ordered.Add(k, v)
		}
	}
	u.RawQuery = ordered.Encode()

	return u, nil
}
