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

// maxCitationQuoteRunes bounds the excerpt carried by a Citation.
// Fragments can be several KB; citations are for display, not re-reading.
const maxCitationQuoteRunes = 280

// Fragment is a retrieved chunk of source-document text with its
// provenance and raw similarity score.
//
// Fragments are produced transiently per request by the retriever and are
// never persisted by this service; the vector store owns the underlying
// chunks.
type Fragment struct {
	FileID      string  `json:"file_id"`
	FileName    string  `json:"file_name"`
	FolderID    string  `json:"folder_id"`
	ChunkIndex  int     `json:"chunk_index"`
	ChunkStart  int     `json:"chunk_start"`
	ChunkEnd    int     `json:"chunk_end"`
	Text        string  `json:"chunk_text"`
	WebViewLink string  `json:"web_view_link"`
	Score       float64 `json:"similarity_score"`
}

// Citation is a Fragment's provenance surfaced to the end user alongside
// the answer. A Citation may only be derived from a fragment that was
// actually rendered into the prompt sent to the completion service.
type Citation struct {
	Quote       string  `json:"quote"`
	ChunkIndex  int     `json:"chunk_index"`
	ChunkStart  int     `json:"chunk_start"`
	ChunkEnd    int     `json:"chunk_end"`
	FileName    string  `json:"file_name"`
	FileID      string  `json:"file_id"`
	WebViewLink string  `json:"web_view_link"`
	Score       float64 `json:"similarity_score"`
}

// NewCitation derives a Citation from a Fragment, truncating the quote to
// a bounded excerpt.
func NewCitation(f Fragment) Citation {
	quote := f.Text
	if runes := []rune(quote); len(runes) > maxCitationQuoteRunes {
		quote = string(runes[:maxCitationQuoteRunes]) + "…"
	}
	return Citation{
		Quote:       quote,
		ChunkIndex:  f.ChunkIndex,
		ChunkStart:  f.ChunkStart,
		ChunkEnd:    f.ChunkEnd,
		FileName:    f.FileName,
		FileID:      f.FileID,
		WebViewLink: f.WebViewLink,
		Score:       f.Score,
	}
}

// ContextChunk is one chunk of a document as used for grounding.
type ContextChunk struct {
	ChunkIndex int    `json:"chunk_index"`
	ChunkText  string `json:"chunk_text"`
	ChunkStart int    `json:"chunk_start"`
	ChunkEnd   int    `json:"chunk_end"`
}

// ContextDocument groups the context chunks that came from one source
// file. Score is the best similarity score among the document's chunks.
type ContextDocument struct {
	FileName    string         `json:"file_name"`
	FileID      string         `json:"file_id"`
	WebViewLink string         `json:"web_view_link"`
	Score       float64        `json:"similarity_score"`
	Chunks      []ContextChunk `json:"chunks_used"`
}

// GroupFragmentsByDocument folds an ordered fragment list into per-document
// context entries. Documents appear in the order their first fragment
// appears, so the caller's similarity ordering is preserved at the
// document level too.
func GroupFragmentsByDocument(fragments []Fragment) []ContextDocument {
	byFile := make(map[string]int, len(fragments))
	docs := make([]ContextDocument, 0, len(fragments))

	for _, f := range fragments {
		chunk := ContextChunk{
			ChunkIndex: f.ChunkIndex,
			ChunkText:  f.Text,
			ChunkStart: f.ChunkStart,
			ChunkEnd:   f.ChunkEnd,
		}
		if i, ok := byFile[f.FileID]; ok {
			docs[i].Chunks = append(docs[i].Chunks, chunk)
			if f.Score > docs[i].Score {
				docs[i].Score = f.Score
			}
			continue
		}
		byFile[f.FileID] = len(docs)
		docs = append(docs, ContextDocument{
			FileName:    f.FileName,
			FileID:      f.FileID,
			WebViewLink: f.WebViewLink,
			Score:       f.Score,
			Chunks:      []ContextChunk{chunk},
		})
	}
	return docs
}
