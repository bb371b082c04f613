package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originChecker validates the Origin header of upgrade requests against a
// configured allow-list. "*" allows every origin; an empty list allows
// same-host requests only (no Origin header, i.e. non-browser clients).
type originChecker struct {
	allowed  map[string]struct{}
	allowAll bool
	logger   *slog.Logger
}

func newOriginChecker(origins []string, logger *slog.Logger) *originChecker {
	if logger == nil {
		logger = slog.Default()
	}

	oc := &originChecker{
		allowed: make(map[string]struct{}),
		logger:  logger,
	}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			oc.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			logger.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		oc.allowed[normalized] = struct{}{}
	}
	return oc
}

func (oc *originChecker) check(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" {
		// Non-browser clients send no Origin header.
		return true
	}

	if oc.allowAll {
		return true
	}

	normalized, ok := normalizeOrigin(header)
	if !ok {
		oc.logger.Warn("blocked upgrade with malformed origin", "origin", header)
		return false
	}
	if _, exists := oc.allowed[normalized]; exists {
		return true
	}

	oc.logger.Warn("blocked upgrade from disallowed origin", "origin", header)
	return false
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
