package threads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"
)

// AuthCodeURL returns the browser URL that starts the authorization flow.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeRedirect extracts the authorization code from the URL the browser
// was redirected to and exchanges it for a short-lived token.
func (c *Client) ExchangeRedirect(ctx context.Context, redirectURL string) (*Token, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, &AuthError{Code: CodeMissingCode, Message: "unparseable redirect URL", Err: err}
	}
	code := u.Query().Get("code")
	if code == "" {
		return nil, &AuthError{Code: CodeMissingCode, Message: "authorization code not found in the URL"}
	}
	return c.ExchangeCode(ctx, code)
}

// ExchangeCode exchanges an authorization code for a short-lived token.
// Rejections carry the remote error code and message verbatim.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	if code == "" {
		return nil, &AuthError{Code: CodeMissingCode, Message: "authorization code is empty"}
	}
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return nil, &AuthError{Code: CodeMissingEnv, Message: "client id or client secret is not configured"}
	}

	ctx, span := c.tracer.Start(ctx, "threads.ExchangeCode")
	defer span.End()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		ae := codeExchangeError(err)
		span.RecordError(ae)
		span.SetStatus(codes.Error, ae.Message)
		slog.Warn("code exchange rejected", slog.String("code", ae.Code), slog.Int("status", ae.StatusCode))
		return nil, ae
	}

	t := &Token{
		Value:     tok.AccessToken,
		Kind:      ShortLived,
		TokenType: tok.TokenType,
		ExpiresAt: tok.Expiry,
	}
	t.UserID = extraUserID(tok.Extra("user_id"))
	slog.Info("short-lived token obtained")
	return t, nil
}

// extraUserID renders the user_id of a token response. Numeric ids beyond
// float64 precision are dropped rather than rounded.
func extraUserID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		if id > 0 && id < 1<<53 && id == math.Trunc(id) {
			return strconv.FormatInt(int64(id), 10)
		}
	}
	return ""
}

// codeExchangeError converts an oauth2 exchange failure into an *AuthError.
func codeExchangeError(err error) *AuthError {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		ae := &AuthError{Code: CodeTokenExchange, Message: truncateBytes(re.Body, 200), Err: err}
		if re.Response != nil {
			ae.StatusCode = re.Response.StatusCode
		}
		if re.ErrorCode != "" {
			ae.Code = re.ErrorCode
			ae.Message = re.ErrorDescription
		}
		if ge := parseGraphError(re.Body); ge != nil {
			ae.Code = ge.code(ae.Code)
			ae.Message = ge.Message
		}
		return ae
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return &AuthError{Code: CodeRequestFailed, Message: "request failed", Err: err}
	}
	return &AuthError{Code: CodeTokenExchange, Message: err.Error(), Err: err}
}

// ExchangeLongLived exchanges a short-lived token for a long-lived one.
// A token that is empty, already long-lived or expired is refused without
// contacting the server.
func (c *Client) ExchangeLongLived(ctx context.Context, short *Token) (*Token, error) {
	if short == nil || short.Value == "" {
		return nil, &AuthError{Code: CodeMissingToken, Message: "no short-lived token provided"}
	}
	if short.Kind == LongLived {
		return nil, &AuthError{Code: CodeLongTokenExchange, Message: "token is already long-lived"}
	}
	if c.cfg.ClientSecret == "" {
		return nil, &AuthError{Code: CodeMissingEnv, Message: "client secret is not configured"}
	}
	now := c.cfg.Now()
	if short.Expired(now) {
		return nil, &AuthError{
			Code:    CodeTokenExpired,
			Message: fmt.Sprintf("short-lived token expired at %s", short.ExpiresAt.UTC().Format(time.RFC3339)),
		}
	}

	ctx, span := c.tracer.Start(ctx, "threads.ExchangeLongLived")
	defer span.End()

	req := &Request{
		Method: http.MethodGet,
		URL:    c.url(pathLongExchange),
		Params: url.Values{
			"grant_type":    {"th_exchange_token"},
			"client_secret": {c.cfg.ClientSecret},
			"access_token":  {short.Value},
		},
		Headers: apiHeaders(""),
	}
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, &AuthError{Code: CodeRequestFailed, Message: "request failed", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		ae := &AuthError{
			Code:       CodeLongTokenExchange,
			Message:    truncateBytes(resp.Body, 200),
			StatusCode: resp.StatusCode,
		}
		if ge := parseGraphError(resp.Body); ge != nil {
			ae.Code = ge.code(CodeLongTokenExchange)
			ae.Message = ge.Message
		}
		span.SetStatus(codes.Error, ae.Message)
		slog.Warn("long-lived exchange rejected", slog.String("code", ae.Code), slog.Int("status", ae.StatusCode))
		return nil, ae
	}

	var raw struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, &AuthError{Code: CodeLongTokenExchange, Message: "unparseable token response", StatusCode: resp.StatusCode, Err: err}
	}
	if raw.AccessToken == "" {
		return nil, &AuthError{Code: CodeLongTokenExchange, Message: "access token was empty in response", StatusCode: resp.StatusCode}
	}

	t := &Token{
		Value:     raw.AccessToken,
		Kind:      LongLived,
		TokenType: raw.TokenType,
		UserID:    short.UserID,
	}
	if raw.ExpiresIn > 0 {
		t.ExpiresAt = now.Add(time.Duration(raw.ExpiresIn) * time.Second)
	}
	slog.Info("long-lived token obtained", slog.Time("expires_at", t.ExpiresAt))
	return t, nil
}
