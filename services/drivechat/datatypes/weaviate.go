// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// ChunkClassName is the Weaviate class holding indexed document chunks.
// The external indexing pipeline writes objects of this class; this
// service only reads them.
const ChunkClassName = "DocumentChunk"

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target
// type.
//
// # Description
//
// Encapsulates the marshal/unmarshal round trip needed to convert
// Weaviate's dynamic response (map[string]models.JSONObject) into a
// strongly-typed struct. The target type T must carry json tags matching
// the response shape.
//
// # Limitations
//
//   - Type mismatches produce zero values, not errors.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// ChunkQueryResponse is the shape of a DocumentChunk similarity query.
type ChunkQueryResponse struct {
	Get struct {
		DocumentChunk []ChunkResult `json:"DocumentChunk"`
	} `json:"Get"`
}

// ChunkResult is a single chunk returned by a similarity query.
// Certainty comes from _additional and is always in [0, 1], unlike
// distance whose range depends on the configured metric.
type ChunkResult struct {
	Content     string `json:"content"`
	FileID      string `json:"file_id"`
	FileName    string `json:"file_name"`
	FolderID    string `json:"folder_id"`
	ChunkIndex  int    `json:"chunk_index"`
	ChunkStart  int    `json:"chunk_start"`
	ChunkEnd    int    `json:"chunk_end"`
	WebViewLink string `json:"web_view_link"`
	Additional  struct {
		Certainty *float32 `json:"certainty"`
	} `json:"_additional"`
}

// Fragment converts a ChunkResult into the domain Fragment type.
func (c ChunkResult) Fragment() Fragment {
	var score float64
	if c.Additional.Certainty != nil {
		score = float64(*c.Additional.Certainty)
	}
	return Fragment{
		FileID:      c.FileID,
		FileName:    c.FileName,
		FolderID:    c.FolderID,
		ChunkIndex:  c.ChunkIndex,
		ChunkStart:  c.ChunkStart,
		ChunkEnd:    c.ChunkEnd,
		Text:        c.Content,
		WebViewLink: c.WebViewLink,
		Score:       score,
	}
}

// ChunkAggregateResponse is the shape of a DocumentChunk count query.
type ChunkAggregateResponse struct {
	Aggregate struct {
		DocumentChunk []struct {
			Meta struct {
				Count int64 `json:"count"`
			} `json:"meta"`
		} `json:"DocumentChunk"`
	} `json:"Aggregate"`
}
