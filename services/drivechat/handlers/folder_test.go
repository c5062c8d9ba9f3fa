// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/datatypes"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/folder"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	count int64
	err   error
}

func (f *fakeCounter) CountChunks(context.Context, string) (int64, error) {
	return f.count, f.err
}

func statusRouter(resolver FolderResolver, counter ChunkCounter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/v1/folder/:driveFolderId/status", HandleFolderStatus(resolver, counter))
	return router
}

func doStatus(t *testing.T, router *gin.Engine, driveFolderID string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "/v1/folder/"+driveFolderID+"/status", nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleFolderStatus_Ready(t *testing.T) {
	resolver := folder.NewResolver(folder.NewStaticRegistry([]folder.CanonicalFolder{
		{ID: "f_001", DriveFolderID: "drive-1"},
	}))
	router := statusRouter(resolver, &fakeCounter{count: 42})

	w := doStatus(t, router, "drive-1")
	assert.Equal(t, http.StatusOK, w.Code)

	var status datatypes.FolderStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "f_001", status.FolderID)
	assert.EqualValues(t, 42, status.ChunkCount)
	assert.Equal(t, "ready", status.State)
}

func TestHandleFolderStatus_Processing(t *testing.T) {
	resolver := folder.NewResolver(folder.NewStaticRegistry([]folder.CanonicalFolder{
		{ID: "f_001", DriveFolderID: "drive-1"},
	}))
	router := statusRouter(resolver, &fakeCounter{count: 0})

	w := doStatus(t, router, "drive-1")
	assert.Equal(t, http.StatusOK, w.Code)

	var status datatypes.FolderStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "processing", status.State)
}

func TestHandleFolderStatus_UnknownFolder(t *testing.T) {
	resolver := folder.NewResolver(folder.NewStaticRegistry(nil))
	router := statusRouter(resolver, &fakeCounter{})

	w := doStatus(t, router, "nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleFolderStatus_StoreFailure(t *testing.T) {
	resolver := folder.NewResolver(folder.NewStaticRegistry([]folder.CanonicalFolder{
		{ID: "f_001", DriveFolderID: "drive-1"},
	}))
	router := statusRouter(resolver, &fakeCounter{err: errors.New("weaviate down")})

	w := doStatus(t, router, "drive-1")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
