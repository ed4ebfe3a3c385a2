package threads

import (
	"fmt"
	"slices"
	"strings"
)

const (
	defaultBaseURL     = "https://graph.threads.net"
	defaultAuthURL     = "https://threads.net/oauth/authorize"
	defaultRedirectURI = "https://oauth.pstmn.io/v1/browser-callback"

	pathCodeExchange = "/oauth/access_token"
	pathLongExchange = "/access_token"
	pathUserInsights = "/me/threads_insights"
	pathUserThreads  = "/me/threads"
)

// DefaultUserMetrics are the account-level metrics accepted by UserInsights.
var DefaultUserMetrics = []string{
	"likes", "replies", "followers_count", "follower_demographics",
	"reposts", "views", "quotes",
}

// DefaultMediaMetrics are the per-media metrics accepted by MediaInsights.
var DefaultMediaMetrics = []string{"views", "likes", "replies", "reposts", "quotes", "shares"}

// DefaultBreakdowns are the accepted follower_demographics breakdowns.
var DefaultBreakdowns = []string{"country", "city", "age", "gender"}

// DefaultThreadFields are the fields accepted by ListThreads.
var DefaultThreadFields = []string{
	"id", "media_product_type", "media_type", "media_url", "permalink", "owner",
	"username", "text", "timestamp", "shortcode", "thumbnail_url", "children",
	"is_quote_post", "quoted_post", "reposted_post", "has_replies", "alt_text",
	"link_attachment_url",
}

// mediaInsightsPath returns the versioned insights path for one media object.
func (c *Client) mediaInsightsPath(mediaID string) string {
	return fmt.Sprintf("/%s/%s/insights", c.cfg.APIVersion, mediaID)
}

// validateNames checks that every name is in allowed.
func validateNames(kind string, names, allowed []string) error {
	if len(names) == 0 {
		return &InputError{Code: CodeInvalidInput, Message: fmt.Sprintf("at least one %s is required", kind)}
	}
	var invalid []string
	for _, n := range names {
		if !slices.Contains(allowed, n) {
			invalid = append(invalid, n)
		}
	}
	if len(invalid) > 0 {
		return &InputError{
			Code: CodeInvalidInput,
			Message: fmt.Sprintf("invalid %s(s): %s. Valid %ss: %s",
				kind, strings.Join(invalid, ", "), kind, strings.Join(allowed, ", ")),
		}
	}
	return nil
}
