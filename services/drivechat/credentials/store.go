// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package credentials holds the bearer credential for a session.
//
// The Store is the only writable state shared across requests. It does no
// network I/O; refreshing an expired credential is the identity client's
// job, the store just makes the swap atomic.
package credentials

import "sync"

// State describes what the service currently knows about a credential's
// validity.
type State int

const (
	// StateUnknown means the credential has not been verified yet.
	StateUnknown State = iota

	// StateValid means the identity service accepted the credential on its
	// last use.
	StateValid

	// StateExpired means the identity service rejected the credential and a
	// refresh is required before it can be used again.
	StateExpired
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Credential is an opaque bearer token together with the identity it
// authenticates. Credentials are replaced wholesale on refresh, never
// mutated in place.
type Credential struct {
	// Token is the opaque bearer token presented to upstream services.
	Token string

	// UserID is the identity the token authenticates, when known.
	UserID string

	// State is the last observed validity of the token.
	State State
}

// Store holds the current credential for a session.
//
// # Thread Safety
//
// Safe for concurrent use. Writers replace the whole credential under the
// write lock, so a reader never observes a half-written value.
type Store struct {
	mu   sync.RWMutex
	cred Credential
	set  bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current credential and whether one is present.
func (s *Store) Get() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.set
}

// Set replaces the stored credential atomically.
func (s *Store) Set(cred Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.set = true
}

// Invalidate clears the stored credential. Subsequent Get calls report
// absence until Set is called again.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = Credential{}
	s.set = false
}
