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
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCitation_CarriesProvenance(t *testing.T) {
	f := Fragment{
		FileID:      "doc1",
		FileName:    "report.pdf",
		ChunkIndex:  4,
		ChunkStart:  120,
		ChunkEnd:    480,
		Text:        "Revenue grew 12% in Q3.",
		WebViewLink: "https://example.com/doc1",
		Score:       0.91,
	}

	c := NewCitation(f)
	assert.Equal(t, "Revenue grew 12% in Q3.", c.Quote)
	assert.Equal(t, 4, c.ChunkIndex)
	assert.Equal(t, 120, c.ChunkStart)
	assert.Equal(t, 480, c.ChunkEnd)
	assert.Equal(t, "report.pdf", c.FileName)
	assert.Equal(t, "https://example.com/doc1", c.WebViewLink)
	assert.Equal(t, 0.91, c.Score)
}

func TestNewCitation_TruncatesLongQuote(t *testing.T) {
	f := Fragment{Text: strings.Repeat("é", 1000)}

	c := NewCitation(f)
	assert.True(t, utf8.ValidString(c.Quote), "truncation must not split a rune")
	assert.Equal(t, maxCitationQuoteRunes+1, utf8.RuneCountInString(c.Quote))
	assert.True(t, strings.HasSuffix(c.Quote, "…"))
}

func TestGroupFragmentsByDocument(t *testing.T) {
	fragments := []Fragment{
		{FileID: "doc1", FileName: "a.pdf", ChunkIndex: 1, Text: "one", Score: 0.9},
		{FileID: "doc2", FileName: "b.pdf", ChunkIndex: 0, Text: "two", Score: 0.8},
		{FileID: "doc1", FileName: "a.pdf", ChunkIndex: 5, Text: "three", Score: 0.95},
	}

	docs := GroupFragmentsByDocument(fragments)
	require.Len(t, docs, 2)

	// First-appearance order.
	assert.Equal(t, "doc1", docs[0].FileID)
	assert.Equal(t, "doc2", docs[1].FileID)

	// Best score among a document's chunks wins.
	assert.Equal(t, 0.95, docs[0].Score)
	require.Len(t, docs[0].Chunks, 2)
	assert.Equal(t, 1, docs[0].Chunks[0].ChunkIndex)
	assert.Equal(t, 5, docs[0].Chunks[1].ChunkIndex)
}

func TestGroupFragmentsByDocument_Empty(t *testing.T) {
	docs := GroupFragmentsByDocument(nil)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}
