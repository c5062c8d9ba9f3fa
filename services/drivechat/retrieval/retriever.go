// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval turns a user query into a ranked set of document
// fragments.
//
// The pipeline is embed -> search -> filter -> rank. Embedding failure is
// fatal (there is nothing to search with); a search failure degrades to
// an empty fragment set so the chat can still answer from the model's own
// knowledge, clearly marked as ungrounded by the absence of citations.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.drivechat.retrieval")

// EmbeddingError wraps a failure to compute the query vector. The
// orchestrator maps it to a retrieval failure visible to the client,
// unlike search failures which degrade silently.
type EmbeddingError struct {
	Err error
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("query embedding failed: %v", e.Err)
}

// Unwrap exposes the underlying embedding error.
func (e *EmbeddingError) Unwrap() error { return e.Err }

// IsEmbeddingError checks if an error is an *EmbeddingError.
func IsEmbeddingError(err error) bool {
	var ee *EmbeddingError
	return errors.As(err, &ee)
}

// Config bounds what Retrieve returns.
type Config struct {
	// Limit is the maximum number of fragments returned.
	Limit int

	// MinSimilarity drops fragments scoring below this certainty.
	MinSimilarity float64
}

// DefaultConfig returns the production retrieval configuration.
func DefaultConfig() Config {
	return Config{
		Limit:         5,
		MinSimilarity: 0.3,
	}
}

// validateConfig validates and corrects config values, logging a warning
// for each correction.
func validateConfig(config Config) Config {
	defaults := DefaultConfig()

	if config.Limit < 1 {
		slog.Warn("Invalid retrieval Limit config, using default",
			"provided", config.Limit, "default", defaults.Limit)
		config.Limit = defaults.Limit
	}

	if config.MinSimilarity < 0 || config.MinSimilarity > 1 {
		slog.Warn("Invalid retrieval MinSimilarity config, using default",
			"provided", config.MinSimilarity, "default", defaults.MinSimilarity)
		config.MinSimilarity = defaults.MinSimilarity
	}

	return config
}

// Retriever runs the embed -> search -> filter -> rank pipeline.
//
// # Thread Safety
//
// Safe for concurrent use as long as the injected embedder and searcher
// are.
//
// # Example
//
//	retriever := retrieval.NewRetriever(embedder, searcher, retrieval.DefaultConfig())
//	fragments, err := retriever.Retrieve(ctx, "what changed in Q3?", folderID, "")
type Retriever struct {
	embedder Embedder
	searcher FragmentSearcher
	config   Config
}

// NewRetriever creates a Retriever. Config values are validated and
// corrected if necessary.
func NewRetriever(embedder Embedder, searcher FragmentSearcher, config Config) *Retriever {
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		config:   validateConfig(config),
	}
}

// Retrieve returns the fragments most similar to the query.
//
// # Description
//
// Embeds the query, searches the folder's chunks, drops fragments below
// MinSimilarity, and orders the survivors by score descending with chunk
// index ascending as the tie-break so equal-scoring chunks from the same
// document read in document order. At most Limit fragments are returned.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - query: The user's question.
//   - folderID: Canonical folder to search within.
//   - fileID: Optional; narrows the search to one document.
//
// # Outputs
//
//   - []datatypes.Fragment: Ranked fragments. Empty (never nil) when
//     nothing clears the threshold or the search itself failed.
//   - error: *EmbeddingError when the query vector could not be computed.
//     Search failures are logged and degrade to an empty result instead.
func (r *Retriever) Retrieve(ctx context.Context, query, folderID, fileID string) ([]datatypes.Fragment, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("retrieval.folder_id", folderID))

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		slog.Error("Failed to embed query", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, &EmbeddingError{Err: err}
	}

	found, err := r.searcher.Search(ctx, vector, folderID, fileID, r.config.Limit)
	if err != nil {
		slog.Warn("Fragment search failed, continuing without context",
			"folderId", folderID,
			"error", err,
		)
		span.RecordError(err)
		return []datatypes.Fragment{}, nil
	}

	fragments := make([]datatypes.Fragment, 0, len(found))
	for _, f := range found {
		if f.Score < r.config.MinSimilarity {
			continue
		}
		fragments = append(fragments, f)
	}

	sort.SliceStable(fragments, func(i, j int) bool {
		if fragments[i].Score != fragments[j].Score {
			return fragments[i].Score > fragments[j].Score
		}
		return fragments[i].ChunkIndex < fragments[j].ChunkIndex
	})

	if len(fragments) > r.config.Limit {
		fragments = fragments[:r.config.Limit]
	}

	span.SetAttributes(attribute.Int("retrieval.fragment_count", len(fragments)))
	slog.Debug("Retrieval complete",
		"folderId", folderID,
		"found", len(found),
		"kept", len(fragments),
	)
	return fragments, nil
}
