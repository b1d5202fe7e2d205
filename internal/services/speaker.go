package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/voicecheck/voicecheck/internal/models"
)

// How much of the call the labeler gets to look at. The opening turns
// are enough to tell who is selling.
const labelerSampleSegments = 20

// MergeSegments joins consecutive segments spoken by the same speaker
// into a single turn.
func MergeSegments(segments models.SegmentList) models.SegmentList {
	if len(segments) == 0 {
		return segments
	}

	merged := models.SegmentList{segments[0]}
	for _, seg := range segments[1:] {
		last := &merged[len(merged)-1]
		if seg.Speaker == last.Speaker {
			last.Text = strings.TrimSpace(last.Text + " " + seg.Text)
			last.End = seg.End
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}

// SpeakerLabeler decides which diarized speaker is the seller and
// relabels segments to the canonical seller and customer tags.
type SpeakerLabeler struct {
	client *openai.Client
	model  string
	log    *logrus.Logger
}

// NewSpeakerLabeler creates a new SpeakerLabeler. A nil client disables
// the model call and falls back to first-speaker heuristics.
func NewSpeakerLabeler(client *openai.Client, model string, log *logrus.Logger) *SpeakerLabeler {
	return &SpeakerLabeler{client: client, model: model, log: log}
}

// AssignRoles relabels diarized speaker tags so the seller becomes
// SPEAKER_00 and the customer SPEAKER_01. When the model call fails or
// gives no usable answer, the speaker who opens the call is taken as the
// seller.
func (l *SpeakerLabeler) AssignRoles(ctx context.Context, segments models.SegmentList) models.SegmentList {
	if len(segments) == 0 {
		return segments
	}

	sellerTag := segments[0].Speaker
	if tag, err := l.detectSeller(ctx, segments); err != nil {
		l.log.WithError(err).Warn("speaker labeling failed, using first speaker as seller")
	} else if tag != "" {
		sellerTag = tag
	}

	relabeled := make(models.SegmentList, len(segments))
	for i, seg := range segments {
		if seg.Speaker == sellerTag {
			seg.Speaker = models.SpeakerSeller
		} else {
			seg.Speaker = models.SpeakerCustomer
		}
		relabeled[i] = seg
	}
	return relabeled
}

func (l *SpeakerLabeler) detectSeller(ctx context.Context, segments models.SegmentList) (string, error) {
	if l.client == nil {
		return "", nil
	}

	sample := segments
	if len(sample) > labelerSampleSegments {
		sample = sample[:labelerSampleSegments]
	}

	var sb strings.Builder
	for _, seg := range sample {
		fmt.Fprintf(&sb, "%s: %s\n", seg.Speaker, seg.Text)
	}

	prompt := fmt.Sprintf(`Below is the beginning of a diarized sales call. One speaker is the seller (sales representative), the other is the customer.

%s
Reply with JSON only, no explanation:
{"seller": "<speaker label of the seller, exactly as written above>"}`, sb.String())

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	var answer struct {
		Seller string `json:"seller"`
	}
	content := extractJSON(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &answer); err != nil {
		return "", fmt.Errorf("failed to parse labeler response: %w", err)
	}

	for _, seg := range segments {
		if seg.Speaker == answer.Seller {
			return answer.Seller, nil
		}
	}
	return "", fmt.Errorf("labeler named unknown speaker %q", answer.Seller)
}

// extractJSON strips markdown code fences and surrounding prose from a
// model reply, keeping the outermost JSON value.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
		content = strings.TrimPrefix(content, "json")
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}
	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return content
	}
	var closer byte = '}'
	if content[start] == '[' {
		closer = ']'
	}
	if end := strings.LastIndexByte(content, closer); end > start {
		return content[start : end+1]
	}
	return content[start:]
}
