package threads

import (
	"time"
)

// ClientConfig holds all configuration for the Threads client.
type ClientConfig struct {
	// ClientID is the Threads app id.
	ClientID string

	// ClientSecret is the Threads app secret.
	ClientSecret string

	// RedirectURI must match the redirect URI registered for the app.
	RedirectURI string

	// Scopes requested by AuthCodeURL.
	Scopes []string

	// BaseURL is the Graph API host. Default: https://graph.threads.net
	BaseURL string

	// AuthURL is the browser authorization endpoint.
	// Default: https://threads.net/oauth/authorize
	AuthURL string

	// APIVersion prefixes versioned paths such as media insights. Default: v1.0
	APIVersion string

	// Timeout bounds every HTTP request made by the default transports.
	Timeout time.Duration

	// Proxy is an optional proxy URL for the default transport.
	Proxy string

	// BrowserProfile selects the go-stealth built-in browser profile by index.
	BrowserProfile int

	// Transport overrides the default go-stealth transport.
	Transport Transport

	// UserMetrics lists the accepted account-level insight metrics.
	UserMetrics []string

	// MediaMetrics lists the accepted per-media insight metrics.
	MediaMetrics []string

	// ThreadFields lists the accepted fields of the threads listing.
	ThreadFields []string

	// Breakdowns lists the accepted breakdown dimensions.
	Breakdowns []string

	// InsightsConcurrency bounds parallel media insight requests in
	// FetchThreadsWithInsights.
	InsightsConcurrency int

	// PageSize is the default "limit" parameter for thread listings.
	PageSize int

	// Now returns the current time. Used for token expiry and report stamps.
	Now func() time.Time
}

// defaults fills in zero-value config fields with sensible defaults.
func (cfg *ClientConfig) defaults() {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v1.0"
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = defaultRedirectURI
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"threads_basic", "threads_manage_insights"}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if len(cfg.UserMetrics) == 0 {
		cfg.UserMetrics = DefaultUserMetrics
	}
	if len(cfg.MediaMetrics) == 0 {
		cfg.MediaMetrics = DefaultMediaMetrics
	}
	if len(cfg.ThreadFields) == 0 {
		cfg.ThreadFields = DefaultThreadFields
	}
	if len(cfg.Breakdowns) == 0 {
		cfg.Breakdowns = DefaultBreakdowns
	}
	if cfg.InsightsConcurrency <= 0 {
		cfg.InsightsConcurrency = 4
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
}
