// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides the HTTP handlers for the drivechat service.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/datatypes"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/middleware"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/orchestrator"
	"github.com/gin-gonic/gin"
)

// defaultChatTimeout bounds one chat request end to end, covering
// identity verification, retrieval, and the completion call combined.
const defaultChatTimeout = 60 * time.Second

// ChatService is the orchestration entry point the handler calls.
// Satisfied by *orchestrator.Orchestrator; tests substitute fakes.
type ChatService interface {
	HandleChat(ctx context.Context, token, externalFolderID string, req *datatypes.ChatRequest) (*datatypes.ChatResponse, error)
}

// HandleFolderChat handles POST /v1/chat/folder/:driveFolderId.
//
// # Description
//
// Binds and validates the request body, then runs the chat pipeline with
// a bounded timeout. Pipeline failures arrive as *orchestrator.ChatError
// and map directly to HTTP statuses; the underlying cause is logged but
// never serialized to the client.
//
// # Inputs
//
//   - service: The chat pipeline.
//   - timeout: Per-request budget; zero or negative uses the default.
func HandleFolderChat(service ChatService, timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = defaultChatTimeout
	}
	return func(c *gin.Context) {
		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Debug("Chat request failed validation", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		resp, err := service.HandleChat(ctx, middleware.GetBearerToken(c), c.Param("driveFolderId"), &req)
		if err != nil {
			ce := orchestrator.AsChatError(err)
			c.JSON(ce.HTTPStatus(), gin.H{
				"error": ce.Message,
				"kind":  string(ce.Kind),
			})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}
