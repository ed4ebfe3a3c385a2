package threads

import stealth "github.com/anatolykoptev/go-stealth"

// defaultUserAgent is the fallback User-Agent when the transport has none.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// apiHeaders returns the headers for an authenticated Graph API call.
func apiHeaders(accessToken string) map[string]string {
	h := map[string]string{
		"accept":          "application/json",
		"accept-language": "en-US,en;q=0.9",
	}
	if accessToken != "" {
		h["authorization"] = "Bearer " + accessToken
	}
	return h
}

// withBrowserHeaders copies h and fills in the user agent and its client hints.
func withBrowserHeaders(h map[string]string, userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	out := make(map[string]string, len(h)+4)
	for k, v := range h {
		out[k] = v
	}
	if out["user-agent"] == "" {
		out["user-agent"] = userAgent
	}
	if ch := stealth.ClientHintsHeaders(userAgent); ch != nil {
		for k, v := range ch {
			out[k] = v
		}
	}
	return out
}

// threadsHeaderOrder keeps header order stable for TLS fingerprint consistency.
var threadsHeaderOrder = []string{
	"authorization",
	"content-type",
	"sec-ch-ua",
	"sec-ch-ua-mobile",
	"sec-ch-ua-platform",
	"user-agent",
	"accept",
	"accept-language",
	"accept-encoding",
}
