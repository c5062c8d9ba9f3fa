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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// maxEmbedBytes caps the text sent to the embedding provider. Queries
// longer than this are truncated; the tail carries little signal for
// similarity search anyway.
const maxEmbedBytes = 8192

// Embedder computes a fixed-dimension embedding vector for a text.
//
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns the embedding vector for the text, or an error when
	// the provider could not be reached or rejected the input. An error
	// here is fatal to the enclosing chat request: without a query vector
	// no context can be computed at all.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// =============================================================================
// OpenAI Embedder
// =============================================================================

// OpenAIEmbedder computes embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder using the given OpenAI client.
// An empty model defaults to text-embedding-3-small.
func NewOpenAIEmbedder(client *openai.Client, model string) *OpenAIEmbedder {
	m := openai.EmbeddingModel(model)
	if model == "" {
		m = openai.SmallEmbedding3
		slog.Warn("Embedding model not set, defaulting to text-embedding-3-small")
	}
	return &OpenAIEmbedder{client: client, model: m}
}

// Embed implements the Embedder interface.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: []string{truncate(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embedding call failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("OpenAI returned no embedding data")
	}
	return resp.Data[0].Embedding, nil
}

// =============================================================================
// Embedding-Service Embedder
// =============================================================================

// ServiceEmbedder computes embeddings via the local embedding service's
// /embed endpoint. Deployments that do not want query text leaving the
// host use this backend instead of OpenAI.
type ServiceEmbedder struct {
	url        string
	httpClient *http.Client
}

// serviceEmbedRequest is the embedding service's request body.
type serviceEmbedRequest struct {
	Text string `json:"text"`
}

// serviceEmbedResponse is the embedding service's response body.
type serviceEmbedResponse struct {
	Vector []float32 `json:"vector"`
	Dim    int       `json:"dim"`
}

// NewServiceEmbedder creates an embedder pointed at the embedding
// service URL. A nil httpClient gets a 30-second-timeout default.
func NewServiceEmbedder(url string, httpClient *http.Client) *ServiceEmbedder {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ServiceEmbedder{
		url:        strings.TrimSuffix(url, "/"),
		httpClient: httpClient,
	}
}

// Embed implements the Embedder interface.
func (e *ServiceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(serviceEmbedRequest{Text: truncate(text)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}

	var er serviceEmbedResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}
	if len(er.Vector) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}
	return er.Vector, nil
}

// truncate bounds text to maxEmbedBytes.
func truncate(text string) string {
	if len(text) <= maxEmbedBytes {
		return text
	}
	return text[:maxEmbedBytes]
}
