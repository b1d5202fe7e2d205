package services

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/voicecheck/voicecheck/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestMergeSegments(t *testing.T) {
	segments := models.SegmentList{
		{Start: 0, End: 1.5, Text: "Hello,", Speaker: "SPEAKER_00"},
		{Start: 1.5, End: 3, Text: "this is Anna from Acme.", Speaker: "SPEAKER_00"},
		{Start: 3.2, End: 4, Text: "Hi Anna.", Speaker: "SPEAKER_01"},
		{Start: 4.5, End: 6, Text: "How can I help?", Speaker: "SPEAKER_00"},
	}

	merged := MergeSegments(segments)
	require.Len(t, merged, 3)
	require.Equal(t, "Hello, this is Anna from Acme.", merged[0].Text)
	require.Equal(t, 0.0, merged[0].Start)
	require.Equal(t, 3.0, merged[0].End)
	require.Equal(t, "SPEAKER_01", merged[1].Speaker)
	require.Equal(t, "How can I help?", merged[2].Text)
}

func TestMergeSegments_Empty(t *testing.T) {
	require.Empty(t, MergeSegments(nil))
}

func TestSpeakerLabeler_FirstSpeakerFallback(t *testing.T) {
	// Without a model client the opening speaker is taken as the seller.
	labeler := NewSpeakerLabeler(nil, "", testLogger())

	segments := models.SegmentList{
		{Start: 0, End: 2, Text: "Good afternoon, Acme sales.", Speaker: "SPEAKER_03"},
		{Start: 2, End: 4, Text: "Hello, I got your email.", Speaker: "SPEAKER_07"},
		{Start: 4, End: 6, Text: "Great, let me walk you through it.", Speaker: "SPEAKER_03"},
	}

	labeled := labeler.AssignRoles(context.Background(), segments)
	require.Len(t, labeled, 3)
	require.Equal(t, models.SpeakerSeller, labeled[0].Speaker)
	require.Equal(t, models.SpeakerCustomer, labeled[1].Speaker)
	require.Equal(t, models.SpeakerSeller, labeled[2].Speaker)
}

func TestSpeakerLabeler_EmptyInput(t *testing.T) {
	labeler := NewSpeakerLabeler(nil, "", testLogger())
	require.Empty(t, labeler.AssignRoles(context.Background(), nil))
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"plain", `{"seller": "SPEAKER_00"}`, `{"seller": "SPEAKER_00"}`},
		{"fenced", "```json\n{\"seller\": \"SPEAKER_00\"}\n```", "{\"seller\": \"SPEAKER_00\"}"},
		{"prose", `Sure! Here is the answer: {"seller": "SPEAKER_01"} Hope that helps.`, `{"seller": "SPEAKER_01"}`},
		{"array", `The moments are [{"time": 1}]`, `[{"time": 1}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, extractJSON(tc.content))
		})
	}
}
