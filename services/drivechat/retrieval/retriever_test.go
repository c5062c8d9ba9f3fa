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
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

type fakeSearcher struct {
	fragments []datatypes.Fragment
	err       error
	gotFolder string
	gotFile   string
	gotLimit  int
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, folderID, fileID string, limit int) ([]datatypes.Fragment, error) {
	f.gotFolder = folderID
	f.gotFile = fileID
	f.gotLimit = limit
	return f.fragments, f.err
}

func (f *fakeSearcher) CountChunks(context.Context, string) (int64, error) {
	return int64(len(f.fragments)), nil
}

func frag(file string, index int, score float64) datatypes.Fragment {
	return datatypes.Fragment{
		FileID:     file,
		FileName:   file + ".txt",
		ChunkIndex: index,
		Text:       "text",
		Score:      score,
	}
}

func TestRetrieve_OrdersByScoreThenChunkIndex(t *testing.T) {
	searcher := &fakeSearcher{fragments: []datatypes.Fragment{
		frag("a", 7, 0.80),
		frag("b", 2, 0.95),
		frag("a", 3, 0.80),
		frag("c", 1, 0.60),
	}}
	r := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, searcher, DefaultConfig())

	got, err := r.Retrieve(context.Background(), "q", "f_001", "")
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, 0.95, got[0].Score)
	// Equal scores tie-break on ascending chunk index.
	assert.Equal(t, 3, got[1].ChunkIndex)
	assert.Equal(t, 7, got[2].ChunkIndex)
	assert.Equal(t, 0.60, got[3].Score)
}

func TestRetrieve_DropsBelowThreshold(t *testing.T) {
	searcher := &fakeSearcher{fragments: []datatypes.Fragment{
		frag("a", 0, 0.95),
		frag("a", 1, 0.29),
		frag("a", 2, 0.10),
	}}
	r := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, searcher, DefaultConfig())

	got, err := r.Retrieve(context.Background(), "q", "f_001", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.95, got[0].Score)
}

func TestRetrieve_ThresholdIsInclusive(t *testing.T) {
	searcher := &fakeSearcher{fragments: []datatypes.Fragment{frag("a", 0, 0.3)}}
	r := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, searcher, DefaultConfig())

	got, err := r.Retrieve(context.Background(), "q", "f_001", "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRetrieve_CapsAtLimit(t *testing.T) {
	fragments := make([]datatypes.Fragment, 0, 8)
	for i := 0; i < 8; i++ {
		fragments = append(fragments, frag("a", i, 0.9-float64(i)*0.01))
	}
	searcher := &fakeSearcher{fragments: fragments}
	r := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, searcher, DefaultConfig())

	got, err := r.Retrieve(context.Background(), "q", "f_001", "")
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, 0.9, got[0].Score)
}

func TestRetrieve_EmbeddingFailureIsFatal(t *testing.T) {
	cause := errors.New("embedding service down")
	r := NewRetriever(&fakeEmbedder{err: cause}, &fakeSearcher{}, DefaultConfig())

	_, err := r.Retrieve(context.Background(), "q", "f_001", "")
	require.Error(t, err)
	assert.True(t, IsEmbeddingError(err))
	assert.ErrorIs(t, err, cause)
}

func TestRetrieve_SearchFailureDegradesToEmpty(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("weaviate down")}
	r := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, searcher, DefaultConfig())

	got, err := r.Retrieve(context.Background(), "q", "f_001", "")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRetrieve_PassesFolderAndFileFilter(t *testing.T) {
	searcher := &fakeSearcher{}
	r := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, searcher, DefaultConfig())

	_, err := r.Retrieve(context.Background(), "q", "f_001", "doc-9")
	require.NoError(t, err)
	assert.Equal(t, "f_001", searcher.gotFolder)
	assert.Equal(t, "doc-9", searcher.gotFile)
	assert.Equal(t, 5, searcher.gotLimit)
}

func TestNewRetriever_CorrectsInvalidConfig(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, &fakeSearcher{}, Config{Limit: 0, MinSimilarity: 2.5})
	assert.Equal(t, 5, r.config.Limit)
	assert.Equal(t, 0.3, r.config.MinSimilarity)
}
