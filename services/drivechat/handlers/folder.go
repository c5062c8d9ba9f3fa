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
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/datatypes"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/folder"
	"github.com/gin-gonic/gin"
)

// ChunkCounter reports how many chunks are indexed for a folder.
// Satisfied by *retrieval.WeaviateSearcher.
type ChunkCounter interface {
	CountChunks(ctx context.Context, folderID string) (int64, error)
}

// FolderResolver maps external folder ids to canonical folders.
// Satisfied by *folder.Resolver.
type FolderResolver interface {
	Resolve(ctx context.Context, externalID string) (folder.CanonicalFolder, error)
}

// HandleFolderStatus handles GET /v1/folder/:driveFolderId/status.
//
// Resolves the external folder id and reports how far indexing has
// progressed, so UI clients can show "processing" until the first chunk
// lands in the vector store.
func HandleFolderStatus(resolver FolderResolver, counter ChunkCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		externalID := c.Param("driveFolderId")

		canonical, err := resolver.Resolve(ctx, externalID)
		if err != nil {
			if errors.Is(err, folder.ErrFolderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
				return
			}
			slog.Error("Folder resolution failed", "driveFolderId", externalID, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "folder registry unavailable"})
			return
		}

		count, err := counter.CountChunks(ctx, canonical.ID)
		if err != nil {
			slog.Error("Chunk count failed", "folderId", canonical.ID, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "vector store unavailable"})
			return
		}

		c.JSON(http.StatusOK, datatypes.NewFolderStatus(canonical.ID, count))
	}
}
