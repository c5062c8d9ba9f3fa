// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble_GroundedPrompt(t *testing.T) {
	a := NewAssembler()
	fragments := []datatypes.Fragment{
		{FileName: "report.pdf", Text: "Revenue grew 12% in Q3."},
		{FileName: "notes.txt", Text: "Board approved the expansion."},
	}

	rendered, used := a.Assemble("how was Q3?", fragments, "")

	assert.Contains(t, rendered, "ONLY the document content")
	assert.Contains(t, rendered, "Content from report.pdf:\nRevenue grew 12% in Q3.")
	assert.Contains(t, rendered, "Content from notes.txt:\nBoard approved the expansion.")
	assert.Equal(t, fragments, used)
}

func TestAssemble_FallbackWhenNoFragments(t *testing.T) {
	a := NewAssembler()

	rendered, used := a.Assemble("how was Q3?", nil, "")

	assert.Contains(t, rendered, "No relevant document content was found")
	assert.Contains(t, rendered, "still be processing")
	assert.NotNil(t, used)
	assert.Empty(t, used)
}

func TestAssemble_SystemContextPrepended(t *testing.T) {
	a := NewAssembler()
	fragments := []datatypes.Fragment{{FileName: "a.txt", Text: "alpha"}}

	rendered, _ := a.Assemble("q", fragments, "Current date and time: Monday, March 2, 2026 at 09:15 UTC")

	assert.True(t, strings.HasPrefix(rendered, "Current date and time:"))
	assert.Contains(t, rendered, "alpha")
}

func TestAssemble_SkipsBlankFragments(t *testing.T) {
	a := NewAssembler()
	fragments := []datatypes.Fragment{
		{FileName: "a.txt", Text: "   "},
		{FileName: "b.txt", Text: "real content"},
	}

	rendered, used := a.Assemble("q", fragments, "")

	require.Len(t, used, 1)
	assert.Equal(t, "b.txt", used[0].FileName)
	assert.NotContains(t, rendered, "Content from a.txt")
}

func TestAssemble_AllBlankFallsBack(t *testing.T) {
	a := NewAssembler()
	fragments := []datatypes.Fragment{{FileName: "a.txt", Text: ""}}

	rendered, used := a.Assemble("q", fragments, "ctx")

	assert.Contains(t, rendered, "No relevant document content was found")
	assert.True(t, strings.HasPrefix(rendered, "ctx"))
	assert.Empty(t, used)
}

func TestAssemble_UsedMatchesRenderedOrder(t *testing.T) {
	a := NewAssembler()
	fragments := []datatypes.Fragment{
		{FileName: "first.txt", Text: "one"},
		{FileName: "second.txt", Text: "two"},
		{FileName: "third.txt", Text: "three"},
	}

	rendered, used := a.Assemble("q", fragments, "")

	require.Len(t, used, 3)
	posFirst := strings.Index(rendered, "Content from first.txt")
	posSecond := strings.Index(rendered, "Content from second.txt")
	posThird := strings.Index(rendered, "Content from third.txt")
	assert.True(t, posFirst < posSecond && posSecond < posThird)
	assert.Equal(t, "first.txt", used[0].FileName)
	assert.Equal(t, "third.txt", used[2].FileName)
}

func TestTimeContext(t *testing.T) {
	ts := time.Date(2026, time.March, 2, 9, 15, 0, 0, time.UTC)
	assert.Equal(t, "Current date and time: Monday, March 2, 2026 at 09:15 UTC", TimeContext(ts))
}
