// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package identity

import (
	"net/http"
	"sync"

	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/credentials"
)

// ClientPool hands out identity clients scoped to one presented
// credential.
//
// # Description
//
// Each distinct bearer token gets its own Client with its own
// credential store. Requests presenting the same token share one
// Client, so its single-flight refresh dedups across them; requests
// presenting different tokens get independent clients, so one
// session's rejected or refreshed credential can never leak into
// another session's calls.
//
// # Thread Safety
//
// Safe for concurrent use.
//
// # Limitations
//
//   - The pool grows with the number of distinct live credentials.
//     Entries whose credential was invalidated by a failed refresh are
//     dropped on the next lookup for that token.
type ClientPool struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*Client
}

// NewClientPool creates a pool of per-credential identity clients.
// Parameters match NewClient; a nil httpClient gets the default.
func NewClientPool(baseURL string, httpClient *http.Client) *ClientPool {
	return &ClientPool{
		baseURL:    baseURL,
		httpClient: httpClient,
		clients:    make(map[string]*Client),
	}
}

// ForCredential returns the identity client serving the presented
// token, creating and seeding one on first sight. A token whose stored
// credential was invalidated gets a fresh client, so re-presenting it
// starts a clean verification instead of replaying the failure.
func (p *ClientPool) ForCredential(token string) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[token]; ok {
		if _, present := c.store.Get(); present {
			return c
		}
		delete(p.clients, token)
	}

	store := credentials.NewStore()
	store.Set(credentials.Credential{Token: token, State: credentials.StateUnknown})
	c := NewClient(p.baseURL, store, p.httpClient)
	p.clients[token] = c
	return c
}
