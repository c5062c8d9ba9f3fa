// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompt assembles the grounded system prompt sent to the
// completion model.
//
// The assembler is deterministic and does no I/O. It reports exactly
// which fragments made it into the prompt so citations downstream can
// never reference content the model was not shown.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/datatypes"
)

// groundedInstruction tells the model to answer only from the supplied
// document content.
const groundedInstruction = `You are a helpful assistant answering questions about the user's documents.
Answer using ONLY the document content provided below. If the content does
not contain the answer, say so plainly instead of guessing. Do not invent
facts, figures, or quotes that are not in the provided content.`

// fallbackInstruction is used when retrieval produced no usable content.
const fallbackInstruction = `You are a helpful assistant answering questions about the user's documents.
No relevant document content was found for this question. The documents may
still be processing, or the question may not relate to the indexed folder.
Say that you could not find relevant content in the documents, and answer
from general knowledge only if clearly useful, noting that the answer is
not based on the user's documents.`

// Assembler builds system prompts from retrieved fragments.
type Assembler struct{}

// NewAssembler creates an Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble builds the system prompt for a query.
//
// # Description
//
// When fragments are present, the prompt carries the grounded instruction
// followed by each fragment's text labeled with its source file. When no
// fragments survive retrieval, the fallback instruction is used instead.
// systemContext (time of day, deployment hints) is prepended when
// non-empty.
//
// # Outputs
//
//   - string: The assembled system prompt.
//   - []datatypes.Fragment: Exactly the fragments whose text appears in
//     the prompt, in prompt order. Citations must be built from this
//     slice and nothing else.
func (a *Assembler) Assemble(query string, fragments []datatypes.Fragment, systemContext string) (string, []datatypes.Fragment) {
	var b strings.Builder

	if systemContext != "" {
		b.WriteString(systemContext)
		b.WriteString("\n\n")
	}

	if len(fragments) == 0 {
		b.WriteString(fallbackInstruction)
		return b.String(), []datatypes.Fragment{}
	}

	b.WriteString(groundedInstruction)
	b.WriteString("\n\n")

	used := make([]datatypes.Fragment, 0, len(fragments))
	for _, f := range fragments {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		fmt.Fprintf(&b, "Content from %s:\n%s\n\n", f.FileName, f.Text)
		used = append(used, f)
	}

	if len(used) == 0 {
		// Every fragment was blank. Rebuild as the fallback prompt.
		b.Reset()
		if systemContext != "" {
			b.WriteString(systemContext)
			b.WriteString("\n\n")
		}
		b.WriteString(fallbackInstruction)
		return b.String(), used
	}

	return strings.TrimRight(b.String(), "\n"), used
}

// TimeContext renders the current date and time for prompt injection, so
// the model can resolve relative phrases like "last quarter".
func TimeContext(now time.Time) string {
	return "Current date and time: " + now.Format("Monday, January 2, 2006 at 15:04 MST")
}
