// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package identity talks to the external identity service.
//
// The client wraps every call with bearer auth and transparently refreshes
// an expired credential: when a call comes back 401, exactly one refresh
// is issued no matter how many concurrent callers hit the 401 at the same
// moment. Late joiners await the first refresh's outcome instead of
// issuing their own (single-flight). Refresh attempts per logical call are
// capped so an unavailable identity service cannot cause a retry loop.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/credentials"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("aleutian.drivechat.identity")

// maxRefreshAttempts caps credential refreshes per logical call.
// This bounds the 401 -> refresh -> retry cycle when the identity service
// keeps rejecting freshly refreshed tokens.
const maxRefreshAttempts = 3

// =============================================================================
// Error Types
// =============================================================================

// ErrUnauthorized is returned when the credential is missing, rejected,
// or could not be refreshed.
var ErrUnauthorized = errors.New("unauthorized")

// ErrRefreshFailed is returned when the identity service's refresh
// endpoint declines to issue a new credential.
var ErrRefreshFailed = errors.New("credential refresh failed")

// UpstreamError wraps a transport-level failure reaching the identity
// service. Callers may treat it as transient and retry.
type UpstreamError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("identity service unavailable during %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying transport error.
func (e *UpstreamError) Unwrap() error { return e.Err }

// ClientError wraps a non-401 4xx response from the identity service.
// These indicate a malformed request and must not be retried.
type ClientError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	return fmt.Sprintf("identity service rejected request (status %d): %s", e.StatusCode, e.Body)
}

// IsUpstreamError checks if an error is an *UpstreamError.
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// =============================================================================
// Identity Types
// =============================================================================

// Identity is the authenticated principal returned by the identity
// service, together with the optional linked-storage credential the
// service holds on the user's behalf.
type Identity struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	StorageToken string `json:"drive_token,omitempty"`
}

// refreshResponse is the body of a successful POST /identity/refresh.
type refreshResponse struct {
	Token string `json:"token"`
}

// =============================================================================
// Client
// =============================================================================

// Client authenticates calls against the identity service.
//
// # Thread Safety
//
// Safe for concurrent use. The credential store serializes token reads and
// swaps; the singleflight group serializes refreshes of the same token
// while letting unrelated credentials (other Client instances) proceed
// independently.
//
// # Example
//
//	store := credentials.NewStore()
//	store.Set(credentials.Credential{Token: bearer})
//	client := identity.NewClient("http://upgrade:8080", store, nil)
//	id, err := client.Verify(ctx)
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      *credentials.Store
	refresh    singleflight.Group
}

// NewClient creates an identity client.
//
// Parameters:
//   - baseURL: Identity service base URL; a trailing slash is trimmed.
//   - store: Credential store for the session. Must not be nil.
//   - httpClient: Optional HTTP client; a 30-second-timeout default is
//     used when nil.
func NewClient(baseURL string, store *credentials.Store, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		store:      store,
	}
}

// Verify checks the stored credential against GET /identity/me.
//
// # Outputs
//
//   - *Identity: The authenticated principal on success.
//   - error: ErrUnauthorized when the credential is absent, rejected, or
//     unrefreshable; *ClientError on other 4xx; *UpstreamError on network
//     failure or 5xx. Retrying upstream failures is the caller's job; the
//     retry policy lives in the orchestrator, not here.
func (c *Client) Verify(ctx context.Context) (*Identity, error) {
	ctx, span := tracer.Start(ctx, "identity.Verify")
	defer span.End()

	resp, err := c.Do(ctx, http.MethodGet, "/identity/me", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify failed")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Op: "verify", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var id Identity
		if err := json.Unmarshal(body, &id); err != nil {
			return nil, &ClientError{StatusCode: resp.StatusCode, Body: "malformed identity response"}
		}
		c.markValid(id.ID)
		span.SetAttributes(attribute.String("identity.user_id", id.ID))
		return &id, nil
	case resp.StatusCode >= 500:
		return nil, &UpstreamError{Op: "verify", Err: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		return nil, &ClientError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// Refresh exchanges the given credential for a fresh one via
// POST /identity/refresh.
//
// Most callers should not call this directly; Do triggers it on 401 with
// single-flight deduplication. It is exported for the orchestrator's
// explicit-refresh path and for tests.
func (c *Client) Refresh(ctx context.Context, cred credentials.Credential) (credentials.Credential, error) {
	ctx, span := tracer.Start(ctx, "identity.Refresh")
	defer span.End()

	resp, err := c.send(ctx, http.MethodPost, "/identity/refresh", nil, cred.Token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh transport failure")
		return credentials.Credential{}, &UpstreamError{Op: "refresh", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		slog.Error("Credential refresh rejected",
			"status", resp.StatusCode,
			"userId", cred.UserID,
		)
		span.SetAttributes(attribute.Int("refresh.status_code", resp.StatusCode))
		span.SetStatus(codes.Error, "refresh rejected")
		return credentials.Credential{}, fmt.Errorf("refresh returned status %d: %w", resp.StatusCode, ErrRefreshFailed)
	}

	var rr refreshResponse
	if err := json.Unmarshal(body, &rr); err != nil || rr.Token == "" {
		span.SetStatus(codes.Error, "refresh response missing token")
		return credentials.Credential{}, fmt.Errorf("refresh response missing token: %w", ErrRefreshFailed)
	}

	slog.Info("Credential refresh successful", "userId", cred.UserID)
	return credentials.Credential{
		Token:  rr.Token,
		UserID: cred.UserID,
		State:  credentials.StateValid,
	}, nil
}

// Do performs an authenticated call against the identity service.
//
// # Description
//
// Attaches the stored bearer credential and executes the request. On a
// 401 response it joins a single-flight refresh for the stale token,
// then retries the original call with the new credential, up to
// maxRefreshAttempts refreshes per logical call. If refresh fails, the
// stored credential is invalidated and ErrUnauthorized is returned.
//
// Responses other than 401 are returned to the caller unclassified; the
// caller decides what a 404 or 500 means for its operation.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeouts.
//   - method, path: Request method and path relative to the base URL.
//   - body: Optional JSON payload; re-sent verbatim on retry.
//
// # Limitations
//
//   - A refresh joined from another caller runs on that caller's context;
//     joiners canceled mid-wait still receive the shared outcome.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	cred, ok := c.store.Get()
	if !ok {
		return nil, fmt.Errorf("no credential available: %w", ErrUnauthorized)
	}

	for attempt := 0; attempt <= maxRefreshAttempts; attempt++ {
		resp, err := c.send(ctx, method, path, body, cred.Token)
		if err != nil {
			return nil, &UpstreamError{Op: method + " " + path, Err: err}
		}
		if resp.StatusCode != http.StatusUnauthorized {
			return resp, nil
		}
		resp.Body.Close()

		if attempt == maxRefreshAttempts {
			break
		}

		slog.Warn("Got 401, attempting credential refresh",
			"path", path,
			"attempt", attempt+1,
			"maxAttempts", maxRefreshAttempts,
		)
		fresh, err := c.sharedRefresh(ctx, cred)
		if err != nil {
			c.store.Invalidate()
			slog.Error("Credential refresh failed, invalidating credential", "error", err)
			return nil, fmt.Errorf("refresh after 401: %w", ErrUnauthorized)
		}
		cred = fresh
	}

	c.store.Invalidate()
	return nil, fmt.Errorf("still unauthorized after %d refreshes: %w", maxRefreshAttempts, ErrUnauthorized)
}

// sharedRefresh refreshes the stale credential through the single-flight
// group. Concurrent callers holding the same stale token share one
// refresh call; the winner swaps the store and everyone gets the new
// credential. The store is re-checked inside the flight in case a winner
// from an earlier flight already replaced the token.
func (c *Client) sharedRefresh(ctx context.Context, stale credentials.Credential) (credentials.Credential, error) {
	v, err, shared := c.refresh.Do(stale.Token, func() (interface{}, error) {
		if cur, ok := c.store.Get(); ok && cur.Token != stale.Token {
			return cur, nil
		}
		fresh, err := c.Refresh(ctx, stale)
		if err != nil {
			return credentials.Credential{}, err
		}
		c.store.Set(fresh)
		if m := observability.DefaultMetrics; m != nil {
			m.RefreshesTotal.WithLabelValues("performed").Inc()
		}
		return fresh, nil
	})
	if err != nil {
		return credentials.Credential{}, err
	}
	if shared {
		if m := observability.DefaultMetrics; m != nil {
			m.RefreshesTotal.WithLabelValues("deduplicated").Inc()
		}
		slog.Debug("Joined in-flight credential refresh")
	}
	return v.(credentials.Credential), nil
}

// markValid records a successful verification on the stored credential.
func (c *Client) markValid(userID string) {
	if cred, ok := c.store.Get(); ok {
		cred.UserID = userID
		cred.State = credentials.StateValid
		c.store.Set(cred)
	}
}

// send issues one HTTP request with the given bearer token.
func (c *Client) send(ctx context.Context, method, path string, body []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}
