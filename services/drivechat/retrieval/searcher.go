// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// FragmentSearcher queries the vector store for document fragments.
//
// Implementations must be safe for concurrent use.
type FragmentSearcher interface {
	// Search returns fragments from the given folder ordered by the
	// store's similarity ranking. fileID narrows the search to a single
	// document when non-empty. The returned scores are certainties in
	// [0, 1]; no threshold is applied here.
	Search(ctx context.Context, vector []float32, folderID, fileID string, limit int) ([]datatypes.Fragment, error)

	// CountChunks returns the number of indexed chunks in a folder.
	CountChunks(ctx context.Context, folderID string) (int64, error)
}

// WeaviateSearcher implements FragmentSearcher against the DocumentChunk
// class.
//
// # Thread Safety
//
// Safe for concurrent use. The underlying Weaviate client handles
// connection pooling.
type WeaviateSearcher struct {
	client *weaviate.Client
}

// NewWeaviateSearcher creates a searcher using the given Weaviate client.
func NewWeaviateSearcher(client *weaviate.Client) *WeaviateSearcher {
	return &WeaviateSearcher{client: client}
}

// Search retrieves fragments by vector similarity.
//
// # Description
//
// Runs a nearVector query against the DocumentChunk class, filtered to
// the canonical folder (and optionally a single file). Certainty is
// requested from _additional because it is always normalized to [0, 1],
// unlike distance whose range depends on the configured metric.
//
// # Outputs
//
//   - []datatypes.Fragment: Matching fragments in the store's similarity
//     order. Empty when nothing matches.
//   - error: Non-nil when the query or response parsing fails.
func (s *WeaviateSearcher) Search(ctx context.Context, vector []float32, folderID, fileID string, limit int) ([]datatypes.Fragment, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Search")
	defer span.End()

	folderFilter := filters.Where().
		WithPath([]string{"folder_id"}).
		WithOperator(filters.Equal).
		WithValueString(folderID)

	where := folderFilter
	if fileID != "" {
		fileFilter := filters.Where().
			WithPath([]string{"file_id"}).
			WithOperator(filters.Equal).
			WithValueString(fileID)
		where = filters.Where().
			WithOperator(filters.And).
			WithOperands([]*filters.WhereBuilder{folderFilter, fileFilter})
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "file_id"},
		{Name: "file_name"},
		{Name: "folder_id"},
		{Name: "chunk_index"},
		{Name: "chunk_start"},
		{Name: "chunk_end"},
		{Name: "web_view_link"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(datatypes.ChunkClassName).
		WithFields(fields...).
		WithWhere(where).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		slog.Error("Weaviate chunk search failed", "folderId", folderID, "error", err)
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.ChunkQueryResponse](result)
	if err != nil {
		slog.Error("Failed to parse chunk search results", "error", err)
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	fragments := make([]datatypes.Fragment, 0, len(parsed.Get.DocumentChunk))
	for _, chunk := range parsed.Get.DocumentChunk {
		fragments = append(fragments, chunk.Fragment())
	}

	slog.Debug("Chunk search complete", "folderId", folderID, "count", len(fragments))
	return fragments, nil
}

// CountChunks returns how many chunks are indexed for a folder. Used by
// the folder status endpoint to report indexing progress.
func (s *WeaviateSearcher) CountChunks(ctx context.Context, folderID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "retrieval.CountChunks")
	defer span.End()

	where := filters.Where().
		WithPath([]string{"folder_id"}).
		WithOperator(filters.Equal).
		WithValueString(folderID)

	result, err := s.client.GraphQL().Aggregate().
		WithClassName(datatypes.ChunkClassName).
		WithWhere(where).
		WithFields(graphql.Field{
			Name:   "meta",
			Fields: []graphql.Field{{Name: "count"}},
		}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("weaviate aggregate failed: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.ChunkAggregateResponse](result)
	if err != nil {
		return 0, fmt.Errorf("failed to parse aggregate results: %w", err)
	}
	if len(parsed.Aggregate.DocumentChunk) == 0 {
		return 0, nil
	}
	return parsed.Aggregate.DocumentChunk[0].Meta.Count, nil
}
