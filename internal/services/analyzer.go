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

// AnalysisResult is the validated scoring output for one call.
type AnalysisResult struct {
	Scores          models.Scores
	Status          models.DialogStatus
	KeyMoments      models.KeyMomentList
	Recommendations models.RecommendationList
	Summary         string
	SpeakingTime    models.SpeakingTime
}

// Analyzer scores a transcribed sales call against the rubric.
type Analyzer interface {
	Analyze(ctx context.Context, transcript *TranscriptResult) (*AnalysisResult, error)
}

// OpenAIAnalyzer scores calls with a chat completion model.
type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
	log    *logrus.Logger
}

// NewOpenAIAnalyzer creates a new OpenAIAnalyzer.
func NewOpenAIAnalyzer(client *openai.Client, model string, log *logrus.Logger) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{client: client, model: model, log: log}
}

// rawAnalysis mirrors the JSON shape the model is asked to produce.
type rawAnalysis struct {
	Scores          models.Scores             `json:"scores"`
	Status          string                    `json:"status"`
	KeyMoments      models.KeyMomentList      `json:"key_moments"`
	Recommendations models.RecommendationList `json:"recommendations"`
	Summary         string                    `json:"summary"`
}

const analysisPromptTemplate = `You are an expert sales call quality analyst. Analyze the following sales call transcript. The seller's lines are marked "Seller", the customer's lines "Customer".

Transcript:
%s

Score the seller from 0 to 10 in each category and produce the result strictly as JSON in this shape:
{
  "scores": {
    "greeting": 0,
    "needs_discovery": 0,
    "presentation": 0,
    "objection_handling": 0,
    "closing": 0,
    "active_listening": 0,
    "empathy": 0,
    "overall": 0
  },
  "status": "dealed | rejected | in_progress",
  "key_moments": [{"type": "objection | buying_signal | turning_point", "time": 0.0, "text": "what happened"}],
  "recommendations": [{"text": "concrete improvement advice", "time_range": [0.0, 0.0]}],
  "summary": "two or three sentences on how the call went"
}

Rules:
- "overall" is your weighted judgment of the whole call, not an average.
- "status" is "dealed" only when the customer clearly agreed to buy, "rejected" when they clearly refused, otherwise "in_progress".
- "time" and "time_range" values are seconds from the start of the call.
- Return JSON only, no commentary.`

// Analyze runs the rubric prompt and validates the reply. Any invalid
// score or malformed reply fails the whole analysis.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, transcript *TranscriptResult) (*AnalysisResult, error) {
	if a.client == nil {
		return nil, fmt.Errorf("OpenAI client not initialized")
	}
	if len(transcript.Segments) == 0 {
		return nil, fmt.Errorf("transcript has no segments")
	}

	prompt := fmt.Sprintf(analysisPromptTemplate, formatTranscript(transcript.Segments))

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := extractJSON(resp.Choices[0].Message.Content)
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}

	if err := validateScores(raw.Scores); err != nil {
		return nil, err
	}

	status := models.DialogStatus(raw.Status)
	if !models.IsClassificationStatus(status) {
		a.log.WithField("status", raw.Status).Warn("analyzer returned unknown status, keeping in_progress")
		status = models.DialogStatusInProgress
	}

	result := &AnalysisResult{
		Scores:          raw.Scores,
		Status:          status,
		KeyMoments:      raw.KeyMoments,
		Recommendations: raw.Recommendations,
		Summary:         strings.TrimSpace(raw.Summary),
		SpeakingTime:    speakingTimeFromSegments(transcript.Segments),
	}
	if result.KeyMoments == nil {
		result.KeyMoments = models.KeyMomentList{}
	}
	if result.Recommendations == nil {
		result.Recommendations = models.RecommendationList{}
	}
	return result, nil
}

func formatTranscript(segments models.SegmentList) string {
	var sb strings.Builder
	for _, seg := range segments {
		role := "Customer"
		if seg.Speaker == models.SpeakerSeller {
			role = "Seller"
		}
		fmt.Fprintf(&sb, "[%.1f] %s: %s\n", seg.Start, role, seg.Text)
	}
	return sb.String()
}

func validateScores(scores models.Scores) error {
	check := scores.Categories()
	check["overall"] = scores.Overall
	for name, value := range check {
		if value < 0 || value > 10 {
			return fmt.Errorf("score %s out of range: %v", name, value)
		}
	}
	return nil
}

// speakingTimeFromSegments sums segment durations per role. Computed
// locally so the split is exact rather than model-estimated.
func speakingTimeFromSegments(segments models.SegmentList) models.SpeakingTime {
	var st models.SpeakingTime
	for _, seg := range segments {
		d := seg.End - seg.Start
		if d < 0 {
			continue
		}
		if seg.Speaker == models.SpeakerSeller {
			st.Sales += d
		} else {
			st.Customer += d
		}
	}
	return st
}
