// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the drivechat service.
//
// This file contains the request and response types for the folder chat
// endpoint. Retrieval-side types (fragments, citations, context documents)
// live in fragment.go; Weaviate query plumbing lives in weaviate.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxQueryBytes is the maximum size of a chat query.
	// Oversized payloads are rejected at validation, before any upstream call.
	MaxQueryBytes = 32 * 1024 // 32KB

	// MaxCompletionTokens is the largest token budget a request may ask for.
	MaxCompletionTokens = 8192
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxQueryBytes on a string field. Checks byte
// length, not rune count, so multi-byte payloads cannot slip past the limit.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxQueryBytes
}

// =============================================================================
// Chat Request Types
// =============================================================================

// ChatRequest is the body of POST /v1/chat/folder/:driveFolderId.
//
// # Fields
//
//   - Query: Required. The user's natural-language question.
//     Limited to 32KB.
//   - FileID: Optional. Restricts retrieval to a single document when the
//     conversation is scoped to one file.
//   - Temperature: Optional. Sampling temperature override for the
//     completion call. When nil the completion client's configured default
//     (0.7) applies.
//   - MaxTokens: Optional. Completion token budget override, capped at
//     MaxCompletionTokens.
//
// The folder is addressed by the external drive folder identifier in the
// URL path, not in the body; the orchestrator resolves it to the canonical
// folder id before retrieval.
type ChatRequest struct {
	Query       string   `json:"query" validate:"required,maxbytes"`
	FileID      string   `json:"file_id,omitempty"`
	Temperature *float32 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"max_tokens,omitempty" validate:"omitempty,gt=0,lte=8192"`
}

// Validate validates the ChatRequest fields using the shared validator.
// Call after binding the JSON body.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// =============================================================================
// Chat Response Types
// =============================================================================

// ChatResponse is the complete result of one chat request.
//
// # Fields
//
//   - ResponseID: Unique identifier for this response (UUID v4),
//     generated server-side.
//   - RequestID: Echo of the request id for log correlation.
//   - Answer: The completion text.
//   - Citations: Citations into the fragments that were embedded in the
//     prompt, ordered by descending similarity score (ties broken by
//     ascending chunk index). Empty when no fragment cleared the
//     similarity threshold.
//   - ContextUsed: The context fragments grouped per source document, in
//     first-appearance order.
//   - ProcessingTimeMs: Wall time spent handling the request.
//
// A ChatResponse is constructed once per request and never mutated; no
// partial response is ever returned to a caller.
type ChatResponse struct {
	ResponseID       string            `json:"response_id"`
	RequestID        string            `json:"request_id"`
	Answer           string            `json:"answer"`
	Citations        []Citation        `json:"citations"`
	ContextUsed      []ContextDocument `json:"context_used"`
	ProcessingTimeMs int64             `json:"processing_time_ms,omitempty"`
}

// NewChatResponse creates a ChatResponse with a generated ResponseID.
//
// Citations and ContextUsed are never nil in the returned value so the
// JSON encoding is always an array, matching what UI clients expect.
func NewChatResponse(requestID, answer string, citations []Citation, contextUsed []ContextDocument) *ChatResponse {
	if citations == nil {
		citations = []Citation{}
	}
	if contextUsed == nil {
		contextUsed = []ContextDocument{}
	}
	return &ChatResponse{
		ResponseID:  uuid.NewString(),
		RequestID:   requestID,
		Answer:      answer,
		Citations:   citations,
		ContextUsed: contextUsed,
	}
}

// =============================================================================
// Folder Types
// =============================================================================

// FolderStatus reports the processing state of a folder's documents.
// State is "ready" once at least one chunk is indexed, "processing" before
// that (a freshly shared folder may still be waiting on the indexer).
type FolderStatus struct {
	FolderID   string `json:"folder_id"`
	ChunkCount int64  `json:"chunk_count"`
	State      string `json:"state"`
	Timestamp  int64  `json:"timestamp"`
}

// NewFolderStatus builds a FolderStatus from a chunk count.
func NewFolderStatus(folderID string, chunkCount int64) *FolderStatus {
	state := "processing"
	if chunkCount > 0 {
		state = "ready"
	}
	return &FolderStatus{
		FolderID:   folderID,
		ChunkCount: chunkCount,
		State:      state,
		Timestamp:  time.Now().UnixMilli(),
	}
}
