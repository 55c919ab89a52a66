package utils

import (
	"fmt"
)

// TargetMatcher decides which tabs get a debugging attachment and which
// requests are captured. It is the single matching rule for every capture
// path: a request matches when its canonical URL equals the canonical
// endpoint (query included), and a tab matches when its canonical origin
// equals the target origin.
type TargetMatcher struct {
	origin   string
	endpoint string
	raw      string
}

var canonicalOpts = CanonicalizeOptions{StripTrailingSlash: true}

// NewTargetMatcher builds a matcher for the endpoint. origin may be empty, in
// which case the endpoint's origin is used.
func NewTargetMatcher(origin, endpoint string) (*TargetMatcher, error) {
	ep, err := Canonicalize(endpoint, canonicalOpts)
	if err != nil {
		return nil, fmt.Errorf("target endpoint: %w", err)
	}
	if origin == "" {
		origin = endpoint
	}
	o, err := Origin(origin)
	if err != nil {
		return nil, fmt.Errorf("target origin: %w", err)
	}
	return &TargetMatcher{origin: o, endpoint: ep, raw: endpoint}, nil
}

// OriginMatches reports whether a tab at rawURL belongs to the target application.
func (m *TargetMatcher) OriginMatches(rawURL string) bool {
	o, err := Origin(rawURL)
	if err != nil {
		return false
	}
	return o == m.origin
}

// EndpointMatches reports whether rawURL is the target endpoint.
func (m *TargetMatcher) EndpointMatches(rawURL string) bool {
	c, err := Canonicalize(rawURL, canonicalOpts)
	if err != nil {
		return false
	}
	return c == m.endpoint
}

// Origin returns the canonical target origin.
func (m *TargetMatcher) Origin() string { return m.origin }

// Endpoint returns the endpoint as configured, for use as an interception pattern.
func (m *TargetMatcher) Endpoint() string { return m.raw }
