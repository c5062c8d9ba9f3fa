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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequest_Valid(t *testing.T) {
	req := ChatRequest{Query: "how was Q3?"}
	assert.NoError(t, req.Validate())
}

func TestChatRequest_MissingQuery(t *testing.T) {
	req := ChatRequest{}
	assert.Error(t, req.Validate())
}

func TestChatRequest_OversizedQuery(t *testing.T) {
	req := ChatRequest{Query: strings.Repeat("x", MaxQueryBytes+1)}
	assert.Error(t, req.Validate())
}

func TestChatRequest_QueryAtLimit(t *testing.T) {
	req := ChatRequest{Query: strings.Repeat("x", MaxQueryBytes)}
	assert.NoError(t, req.Validate())
}

func TestChatRequest_MultiByteQueryCountsBytes(t *testing.T) {
	// Each rune is 3 bytes; rune count is under the limit, byte count is not.
	req := ChatRequest{Query: strings.Repeat("語", MaxQueryBytes/3+1)}
	assert.Error(t, req.Validate())
}

func TestChatRequest_TemperatureBounds(t *testing.T) {
	valid := float32(1.0)
	tooHigh := float32(2.5)
	negative := float32(-0.1)

	assert.NoError(t, (&ChatRequest{Query: "q", Temperature: &valid}).Validate())
	assert.Error(t, (&ChatRequest{Query: "q", Temperature: &tooHigh}).Validate())
	assert.Error(t, (&ChatRequest{Query: "q", Temperature: &negative}).Validate())
}

func TestChatRequest_MaxTokensBounds(t *testing.T) {
	valid := 1024
	zero := 0
	tooBig := MaxCompletionTokens + 1

	assert.NoError(t, (&ChatRequest{Query: "q", MaxTokens: &valid}).Validate())
	assert.Error(t, (&ChatRequest{Query: "q", MaxTokens: &zero}).Validate())
	assert.Error(t, (&ChatRequest{Query: "q", MaxTokens: &tooBig}).Validate())
}

func TestNewChatResponse_NilSlicesBecomeEmpty(t *testing.T) {
	resp := NewChatResponse("req-1", "answer", nil, nil)

	require.NotNil(t, resp.Citations)
	require.NotNil(t, resp.ContextUsed)
	assert.Empty(t, resp.Citations)
	assert.NotEmpty(t, resp.ResponseID)
	assert.Equal(t, "req-1", resp.RequestID)
}

func TestNewChatResponse_UniqueResponseIDs(t *testing.T) {
	a := NewChatResponse("r", "x", nil, nil)
	b := NewChatResponse("r", "x", nil, nil)
	assert.NotEqual(t, a.ResponseID, b.ResponseID)
}

func TestNewFolderStatus(t *testing.T) {
	ready := NewFolderStatus("f_001", 10)
	assert.Equal(t, "ready", ready.State)
	assert.EqualValues(t, 10, ready.ChunkCount)
	assert.NotZero(t, ready.Timestamp)

	processing := NewFolderStatus("f_001", 0)
	assert.Equal(t, "processing", processing.State)
}
