// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package folder maps external drive-provider folder identifiers to the
// system's canonical folder identifiers.
//
// The mapping lives in a registry maintained by the indexing pipeline;
// from this service's perspective it is read-only. Resolution is a pure
// lookup: the same external id always yields the same canonical id.
package folder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrFolderNotFound is returned when no registry entry exists for an
// external folder id.
var ErrFolderNotFound = errors.New("folder not found")

// UnavailableError wraps a registry failure that is not "absent entry",
// so the orchestrator can decide whether to retry.
type UnavailableError struct {
	Err error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("folder registry unavailable: %v", e.Err)
}

// Unwrap exposes the underlying registry error.
func (e *UnavailableError) Unwrap() error { return e.Err }

// CanonicalFolder is a resolved folder: the stable internal identifier
// plus display metadata carried along for logging.
type CanonicalFolder struct {
	ID            string `yaml:"id" json:"id"`
	DriveFolderID string `yaml:"drive_folder_id" json:"drive_folder_id"`
	Name          string `yaml:"name" json:"name"`
}

// Registry looks up canonical folders by external id.
//
// Implementations must be safe for concurrent use.
type Registry interface {
	// Lookup returns the canonical folder for an external id.
	// Returns ErrFolderNotFound when no entry exists, or any other error
	// when the registry itself cannot be consulted.
	Lookup(ctx context.Context, externalID string) (CanonicalFolder, error)
}

// Resolver resolves external folder ids through a Registry.
type Resolver struct {
	registry Registry
}

// NewResolver creates a Resolver backed by the given registry.
func NewResolver(registry Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve maps an external folder id to its canonical folder.
//
// # Outputs
//
//   - CanonicalFolder: The resolved folder.
//   - error: ErrFolderNotFound when the id is unknown; *UnavailableError
//     when the registry could not be consulted (the orchestrator treats
//     this as transient).
func (r *Resolver) Resolve(ctx context.Context, externalID string) (CanonicalFolder, error) {
	if externalID == "" {
		return CanonicalFolder{}, ErrFolderNotFound
	}
	cf, err := r.registry.Lookup(ctx, externalID)
	if err != nil {
		if errors.Is(err, ErrFolderNotFound) {
			return CanonicalFolder{}, err
		}
		return CanonicalFolder{}, &UnavailableError{Err: err}
	}
	return cf, nil
}

// =============================================================================
// Static Registry
// =============================================================================

// registryFile is the on-disk shape of a folder registry.
type registryFile struct {
	Folders []CanonicalFolder `yaml:"folders"`
}

// StaticRegistry is a Registry loaded once from a YAML file.
//
// File format:
//
//	folders:
//	  - drive_folder_id: 1AbC...
//	    id: f_8f14e45f
//	    name: Quarterly Reports
//
// # Thread Safety
//
// Safe for concurrent use; the map is never mutated after load.
type StaticRegistry struct {
	mu      sync.RWMutex
	entries map[string]CanonicalFolder
}

// NewStaticRegistry builds a registry from in-memory entries. Used by
// tests and by deployments that inject the mapping directly.
func NewStaticRegistry(folders []CanonicalFolder) *StaticRegistry {
	entries := make(map[string]CanonicalFolder, len(folders))
	for _, f := range folders {
		entries[f.DriveFolderID] = f
	}
	return &StaticRegistry{entries: entries}
}

// LoadStaticRegistry reads a registry YAML file from disk.
func LoadStaticRegistry(path string) (*StaticRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder registry: %w", err)
	}
	var rf registryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse folder registry: %w", err)
	}
	return NewStaticRegistry(rf.Folders), nil
}

// Lookup implements Registry.
func (r *StaticRegistry) Lookup(_ context.Context, externalID string) (CanonicalFolder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cf, ok := r.entries[externalID]
	if !ok {
		return CanonicalFolder{}, ErrFolderNotFound
	}
	return cf, nil
}
