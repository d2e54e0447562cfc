package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ValidationResult holds the outcome of a validation check. It provides
// both a boolean pass/fail signal and a human-readable message suitable
// for display in the bootstrap CLI.
type ValidationResult struct {
	// Valid is true if the input passed all validation checks.
	Valid bool

	// Message is a human-readable description of the result.
	// On success, it describes what was validated (e.g., "platform endpoint
	// reachable (HTTP 200)"). On failure, it describes why validation failed.
	Message string
}

// HTTPClient is the interface used by validators that make outbound HTTP calls.
// It enables injecting mock HTTP transports for testing without making real
// network calls.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Validator encapsulates the dependencies needed by input validation functions.
// It is constructed during bootstrap initialization and threaded through
// the validation phases.
type Validator struct {
	httpClient HTTPClient
}

// NewValidator creates a Validator with production dependencies: a real
// HTTP client with a 10-second timeout.
func NewValidator() *Validator {
	return &Validator{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewValidatorWithDeps creates a Validator with an injected HTTP client
// for testing.
func NewValidatorWithDeps(httpClient HTTPClient) *Validator {
	return &Validator{
		httpClient: httpClient,
	}
}

// validateTimeout is the per-probe timeout for active validation calls.
// This is separate from the HTTP client timeout to serve as an outer bound
// that also covers DNS resolution, TLS handshake, etc.
const validateTimeout = 15 * time.Second

// ---------------------------------------------------------------------------
// ValidateBaseURL
// ---------------------------------------------------------------------------

// ValidateBaseURL validates the imagery platform base URL.
//
// Validation steps:
//  1. Parse the URL and verify the scheme is http or https with a host.
//  2. Send a GET request to the URL to verify the endpoint is reachable.
//
// Any HTTP status counts as reachable: an unauthenticated GET against the
// platform root commonly returns 401 or 404, which still proves DNS, TLS,
// and routing work. Only transport-level failures reject the URL.
// Credentials are checked separately by the platform-check tool.
func (v *Validator) ValidateBaseURL(ctx context.Context, rawURL string) ValidationResult {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ValidationResult{Valid: false, Message: "platform base URL must not be empty"}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid URL format: %v", err),
		}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("expected http:// or https:// scheme, got %q", parsed.Scheme),
		}
	}

	if parsed.Host == "" {
		return ValidationResult{
			Valid:   false,
			Message: "platform base URL must include a host",
		}
	}

	// Active probe: GET the base URL.
	probeCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	req.Header.Set("User-Agent", "Fieldline-Bootstrap/1.0")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("platform endpoint probe failed: %v", err),
		}
	}
	defer resp.Body.Close()

	// Drain a bounded amount of the body to allow connection reuse.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("platform endpoint reachable (HTTP %d)", resp.StatusCode),
	}
}

// ---------------------------------------------------------------------------
// ValidatePlatformKey
// ---------------------------------------------------------------------------

// ValidatePlatformKey validates a platform API key using a length check only.
//
// Platform keys are opaque tokens with no published format, and verifying
// one requires a scoped API call that would consume quota during setup, so
// the check is limited to "longer than 20 characters". The platform-check
// tool performs the authenticated probe after bootstrap.
func (v *Validator) ValidatePlatformKey(_ context.Context, key string) ValidationResult {
	key = strings.TrimSpace(key)
	if key == "" {
		return ValidationResult{Valid: false, Message: "platform API key must not be empty"}
	}

	if len(key) <= 20 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("platform API key must be longer than 20 characters (got %d)", len(key)),
		}
	}

	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("platform API key accepted (length: %d chars)", len(key)),
	}
}

// ---------------------------------------------------------------------------
// ValidateRegex
// ---------------------------------------------------------------------------

// ValidateRegex is a generic validator that checks whether the input matches
// the given regular expression pattern. It is used for inputs that cannot
// be actively probed, such as the service account identity.
func (v *Validator) ValidateRegex(_ context.Context, input, pattern, fieldName string) ValidationResult {
	input = strings.TrimSpace(input)
	if input == "" {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s must not be empty", fieldName),
		}
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid regex pattern %q: %v", pattern, err),
		}
	}

	if !re.MatchString(input) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s does not match expected format (pattern: %s)", fieldName, pattern),
		}
	}

	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("%s format validated", fieldName),
	}
}

// ---------------------------------------------------------------------------
// ValidateTileRef
// ---------------------------------------------------------------------------

// tileRefRegex validates an MGRS tile reference: a two-digit UTM zone
// followed by a latitude band letter and a two-letter grid square,
// e.g. "31UFU".
var tileRefRegex = regexp.MustCompile(`^[0-9]{2}[A-Z]{3}$`)

// ValidateTileRef validates an MGRS tile reference for the catalog probe.
func (v *Validator) ValidateTileRef(_ context.Context, tile string) ValidationResult {
	tile = strings.TrimSpace(tile)
	if tile == "" {
		return ValidationResult{Valid: false, Message: "tile reference must not be empty"}
	}

	if !tileRefRegex.MatchString(tile) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("tile reference must match pattern [0-9]{2}[A-Z]{3}, e.g. 31UFU (got %q)", tile),
		}
	}

	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("tile reference validated (%s)", tile),
	}
}
