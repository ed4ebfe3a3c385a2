package threads

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

const instrumentationName = "github.com/anatolykoptev/go-threads"

// Client is the top-level Threads API client. It holds no per-fetch state,
// so one Client may serve concurrent fetches.
type Client struct {
	transport  Transport
	httpClient *http.Client
	oauth      *oauth2.Config
	tracer     trace.Tracer
	cfg        ClientConfig
}

// NewClient creates a fully-wired Threads client.
func NewClient(cfg ClientConfig) (*Client, error) {
	cfg.defaults()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := &http.Client{Timeout: cfg.Timeout}

	transport := cfg.Transport
	if transport == nil {
		st, err := NewStealthTransport(cfg.Proxy, cfg.BrowserProfile)
		if err != nil {
			slog.Warn("stealth transport unavailable, using net/http", slog.Any("error", err))
			transport = NewHTTPTransport(httpClient)
		} else {
			transport = st
		}
	}

	return &Client{
		transport:  transport,
		httpClient: httpClient,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.BaseURL + pathCodeExchange,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tracer: otel.Tracer(instrumentationName),
		cfg:    cfg,
	}, nil
}

// Config returns the effective configuration, defaults applied.
func (c *Client) Config() ClientConfig {
	return c.cfg
}

// url joins the base URL and an API path.
func (c *Client) url(path string) string {
	return fmt.Sprintf("%s/%s", c.cfg.BaseURL, strings.TrimLeft(path, "/"))
}
