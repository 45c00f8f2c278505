package manufacturer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lanpulse/lanpulse/internal/device"
)

// Format describes how a provider's response body is interpreted.
type Format string

// Supported provider response formats.
const (
	// FormatText providers return the vendor name as a plain-text body.
	FormatText Format = "text"

	// FormatJSON providers return a structured body carrying the vendor
	// name under a company-name field.
	FormatJSON Format = "json"
)

// Provider is one vendor-lookup endpoint, tried in configuration order.
type Provider struct {
	Name string

	// URL contains a single %s verb replaced with the MAC address.
	URL string

	Format Format
}

// Outcome is the single result of resolving a MAC against all providers.
//
// Status is one of found (Label holds the vendor name), unknown (every
// provider answered, none matched), or error (rate limited by a provider,
// or no provider could be reached at all).
type Outcome struct {
	Status device.LookupStatus
	Label  string
}

// Resolver queries an ordered list of lookup providers for the vendor
// behind a MAC address.
//
// Thread Safety: safe for concurrent use; pacing across concurrent callers
// is handled by the shared Limiter.
type Resolver struct {
	providers []Provider
	limiter   *Limiter
	client    *http.Client
	sentinels []string
	logger    Logger
}

// requestTimeout bounds each individual provider call. There is no overall
// deadline across providers; the worst case is a few multiples of this.
const defaultRequestTimeout = 5 * time.Second

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 64 << 10

// jsonCompanyKeys are the field names tried, in order, when parsing a
// structured provider response.
var jsonCompanyKeys = []string{"company", "companyName"}

// NewResolver creates a resolver over the given providers.
//
// Parameters:
//   - providers: Endpoints in priority order (must not be empty)
//   - limiter: Shared pacing gate, one Acquire per provider attempt
//   - timeout: Per-call HTTP timeout (defaultRequestTimeout if zero)
//   - sentinels: Case-insensitive substrings marking a body as "no match"
func NewResolver(providers []Provider, limiter *Limiter, timeout time.Duration, sentinels []string) *Resolver {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	lowered := make([]string, len(sentinels))
	for i, s := range sentinels {
		lowered[i] = strings.ToLower(s)
	}
	return &Resolver{
		providers: providers,
		limiter:   limiter,
		client:    &http.Client{Timeout: timeout},
		sentinels: lowered,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the resolver.
func (r *Resolver) SetLogger(logger Logger) {
	r.logger = logger
}

// Resolve tries each provider in order and classifies the result.
//
// Per provider: acquire the shared limiter, issue one bounded call, then:
//   - transport failure or timeout: skip to the next provider
//   - HTTP 429: stop immediately with an error outcome - the provider is
//     telling us the shared budget is strained, so burning the remaining
//     providers would make it worse
//   - any other non-2xx status: this provider has no match, continue
//   - usable vendor name (non-empty, no sentinel match): found, stop
//   - anything else: this provider has no match, continue
//
// When all providers are exhausted: unknown if at least one call completed
// without transport error (a definitive negative), error if none did.
func (r *Resolver) Resolve(ctx context.Context, mac string) Outcome {
	answered := false

	for _, p := range r.providers {
		if err := r.limiter.Acquire(ctx); err != nil {
			r.logger.Warn("rate limiter wait aborted", "mac", mac, "error", err)
			return Outcome{Status: device.LookupError}
		}

		label, rateLimited, err := r.query(ctx, p, mac)
		if err != nil {
			r.logger.Debug("provider unreachable",
				"provider", p.Name,
				"mac", mac,
				"error", err,
			)
			continue
		}
		if rateLimited {
			r.logger.Warn("provider rate limited", "provider", p.Name, "mac", mac)
			return Outcome{Status: device.LookupError}
		}

		answered = true
		if label != "" && !r.isNegative(label) {
			r.logger.Debug("vendor resolved",
				"provider", p.Name,
				"mac", mac,
				"vendor", label,
			)
			return Outcome{Status: device.LookupFound, Label: label}
		}
	}

	if answered {
		return Outcome{Status: device.LookupUnknown}
	}
	return Outcome{Status: device.LookupError}
}

// query performs a single provider call and extracts a candidate label.
// rateLimited is set when the provider answered HTTP 429. Any other
// non-2xx status yields an empty label and a nil error: the provider
// answered, but with no vendor.
func (r *Resolver) query(ctx context.Context, p Provider, mac string) (label string, rateLimited bool, err error) {
	url := fmt.Sprintf(p.URL, mac)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "text/plain, application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("calling provider: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", true, nil
	}

	// Only a 2xx body can carry a vendor name. Error pages (404 for an
	// unregistered prefix, 5xx from a flaky gateway) are negative answers,
	// never labels.
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", false, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", false, fmt.Errorf("reading response: %w", err)
	}

	switch p.Format {
	case FormatJSON:
		return parseStructured(body), false, nil
	default:
		return strings.TrimSpace(string(body)), false, nil
	}
}

// parseStructured extracts a company name from a JSON body.
//
// Two envelope variants are supported: a single object, or an array of
// objects (first element wins). Within an object the company-name keys are
// tried in priority order. If the body is not valid JSON at all, the raw
// trimmed text is used as-is - some providers fall back to plain text on
// errors.
func parseStructured(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		return companyField(obj)
	}

	var arr []map[string]any
	if err := json.Unmarshal(body, &arr); err == nil {
		if len(arr) == 0 {
			return ""
		}
		return companyField(arr[0])
	}

	return strings.TrimSpace(string(body))
}

// companyField returns the first non-empty company-name field in obj.
func companyField(obj map[string]any) string {
	for _, key := range jsonCompanyKeys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// isNegative reports whether a candidate label matches a configured
// "no match" sentinel (case-insensitive substring).
func (r *Resolver) isNegative(label string) bool {
	lowered := strings.ToLower(label)
	for _, s := range r.sentinels {
		if strings.Contains(lowered, s) {
			return true
		}
	}
	return false
}
