// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package folder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *StaticRegistry {
	return NewStaticRegistry([]CanonicalFolder{
		{ID: "f_001", DriveFolderID: "1AbCdEf", Name: "Quarterly Reports"},
		{ID: "f_002", DriveFolderID: "2GhIjKl", Name: "Contracts"},
	})
}

func TestResolve_KnownFolder(t *testing.T) {
	r := NewResolver(testRegistry())

	cf, err := r.Resolve(context.Background(), "1AbCdEf")
	require.NoError(t, err)
	assert.Equal(t, "f_001", cf.ID)
	assert.Equal(t, "Quarterly Reports", cf.Name)
}

func TestResolve_Idempotent(t *testing.T) {
	r := NewResolver(testRegistry())

	first, err := r.Resolve(context.Background(), "2GhIjKl")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Resolve(context.Background(), "2GhIjKl")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolve_UnknownFolder(t *testing.T) {
	r := NewResolver(testRegistry())

	_, err := r.Resolve(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestResolve_EmptyID(t *testing.T) {
	r := NewResolver(testRegistry())

	_, err := r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

type failingRegistry struct{ err error }

func (f *failingRegistry) Lookup(context.Context, string) (CanonicalFolder, error) {
	return CanonicalFolder{}, f.err
}

func TestResolve_RegistryFailureWrapsUnavailable(t *testing.T) {
	cause := errors.New("connection reset")
	r := NewResolver(&failingRegistry{err: cause})

	_, err := r.Resolve(context.Background(), "1AbCdEf")
	require.Error(t, err)

	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.ErrorIs(t, err, cause)
}

func TestLoadStaticRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folders.yaml")
	content := `folders:
  - drive_folder_id: 1AbCdEf
    id: f_001
    name: Quarterly Reports
  - drive_folder_id: 2GhIjKl
    id: f_002
    name: Contracts
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	reg, err := LoadStaticRegistry(path)
	require.NoError(t, err)

	cf, err := reg.Lookup(context.Background(), "2GhIjKl")
	require.NoError(t, err)
	assert.Equal(t, "f_002", cf.ID)
}

func TestLoadStaticRegistry_MissingFile(t *testing.T) {
	_, err := LoadStaticRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
