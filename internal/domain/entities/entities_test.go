package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseComplianceState(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ComplianceState
		wantOK  bool
	}{
		{"exact", "Fully Compliant", FullyCompliant, true},
		{"lowercase", "fully compliant", FullyCompliant, true},
		{"whitespace", "  Non-Compliant  ", NonCompliant, true},
		{"partial", "PARTIALLY COMPLIANT", PartiallyCompliant, true},
		{"garbage", "maybe compliant", NonCompliant, false},
		{"empty", "", NonCompliant, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseComplianceState(tc.in)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestComplianceResult_Clamp(t *testing.T) {
	r := &ComplianceResult{Confidence: 150}
	r.Clamp()
	assert.Equal(t, 100, r.Confidence)

	r = &ComplianceResult{Confidence: -5}
	r.Clamp()
	assert.Equal(t, 0, r.Confidence)

	r = &ComplianceResult{Confidence: 42}
	r.Clamp()
	assert.Equal(t, 42, r.Confidence)
}

func TestDocument_FullText_JoinsPagesWithBlankLine(t *testing.T) {
	doc := &Document{
		Pages: []Page{
			{PageNumber: 1, RawText: "page one"},
			{PageNumber: 2, RawText: "page two"},
		},
	}
	assert.Equal(t, "page one\n\npage two", doc.FullText())
}

func TestJob_UpdateProgress_Clamps(t *testing.T) {
	j := &Job{}
	j.UpdateProgress(150, "stage a")
	assert.Equal(t, 100, j.Progress)
	assert.Equal(t, "stage a", j.Stage)

	j.UpdateProgress(-10, "")
	assert.Equal(t, 0, j.Progress)
	assert.Equal(t, "stage a", j.Stage, "empty stage must not overwrite previous stage label")
}

func TestJob_MarkCompletedAndFailed(t *testing.T) {
	j := &Job{}
	j.MarkCompleted()
	assert.Equal(t, JobCompleted, j.Status)
	assert.Equal(t, 100, j.Progress)
	require.False(t, j.CompletedAt.IsZero())

	j2 := &Job{}
	j2.MarkFailed("processing failed")
	assert.Equal(t, JobFailed, j2.Status)
	assert.Equal(t, "processing failed", j2.ErrorMessage)
}

func TestChatSession_AppendIsOrdered(t *testing.T) {
	s := &ChatSession{ID: "sess-1"}
	s.Append(RoleUser, "hello")
	s.Append(RoleAssistant, "hi there")

	require.Len(t, s.Messages, 2)
	assert.Equal(t, RoleUser, s.Messages[0].Role)
	assert.Equal(t, RoleAssistant, s.Messages[1].Role)
}

func TestChatSession_LastN(t *testing.T) {
	s := &ChatSession{ID: "sess-1"}
	for i := 0; i < 6; i++ {
		s.Append(RoleUser, "msg")
	}

	last := s.LastN(4)
	assert.Len(t, last, 4)

	// fewer messages than requested
	s2 := &ChatSession{ID: "sess-2"}
	s2.Append(RoleUser, "only one")
	assert.Len(t, s2.LastN(4), 1)

	assert.Nil(t, s2.LastN(0))
}

func TestComplianceState_Valid(t *testing.T) {
	assert.True(t, FullyCompliant.Valid())
	assert.True(t, PartiallyCompliant.Valid())
	assert.True(t, NonCompliant.Valid())
	assert.False(t, ComplianceState("bogus").Valid())
}
