package audit

import (
	"net/url"
	"strings"
)

// ValidateTargetURL checks that raw is a well-formed absolute http(s) URL.
func ValidateTargetURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, Validationf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, Validationf("url %q is malformed", raw)
	}
	if !u.IsAbs() || u.Hostname() == "" {
		return nil, Validationf("url %q must be absolute", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, Validationf("url scheme %q is not supported", u.Scheme)
	}
	return u, nil
}

// ValidateOptions rejects negative limits.
func ValidateOptions(opts Options) error {
	if opts.MaxPages < 0 {
		return Validationf("max_pages must be >= 0")
	}
	if opts.MaxDepth != nil && *opts.MaxDepth < 0 {
		return Validationf("max_depth must be >= 0")
	}
	if opts.TimeoutMs < 0 {
		return Validationf("timeout_ms must be >= 0")
	}
	return nil
}
