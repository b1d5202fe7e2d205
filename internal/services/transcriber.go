package services

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicecheck/voicecheck/internal/models"
)

// A pause longer than this starts a new segment even mid-sentence.
const segmentPauseGap = 1.5

// TranscriptResult is a full speech-to-text result for one audio file.
type TranscriptResult struct {
	Text                string
	Language            string
	LanguageProbability float64
	Duration            float64
	Segments            models.SegmentList
}

// Transcriber converts an audio file into text with timed segments,
// speaker-tagged when diarization is requested.
type Transcriber interface {
	Transcribe(ctx context.Context, filePath, language string, withSpeakers bool) (*TranscriptResult, error)
}

// DeepgramTranscriber calls the Deepgram pre-recorded audio API and caches
// results per file.
type DeepgramTranscriber struct {
	apiKey   string
	model    string
	language string
	client   *http.Client
	cache    *transcriptCache
	log      *logrus.Logger
}

// NewDeepgramTranscriber creates a new DeepgramTranscriber.
func NewDeepgramTranscriber(apiKey, model, language string, timeout time.Duration, cacheSize int, log *logrus.Logger) *DeepgramTranscriber {
	return &DeepgramTranscriber{
		apiKey:   apiKey,
		model:    model,
		language: language,
		client:   &http.Client{Timeout: timeout},
		cache:    newTranscriptCache(cacheSize),
		log:      log,
	}
}

type deepgramWord struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Speaker        int     `json:"speaker"`
	Confidence     float64 `json:"confidence"`
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage   string  `json:"detected_language"`
			LanguageConfidence float64 `json:"language_confidence"`
			Alternatives       []struct {
				Transcript string         `json:"transcript"`
				Confidence float64        `json:"confidence"`
				Words      []deepgramWord `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe uploads the file to Deepgram and converts the word stream
// into sentence-like segments. Results are cached by path, language and
// diarization mode.
func (t *DeepgramTranscriber) Transcribe(ctx context.Context, filePath, language string, withSpeakers bool) (*TranscriptResult, error) {
	if language == "" {
		language = t.language
	}

	cacheKey := fmt.Sprintf("%s|%s|%t", filePath, language, withSpeakers)
	if cached, ok := t.cache.get(cacheKey); ok {
		t.log.WithField("file", filePath).Debug("transcript cache hit")
		return cached, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	params := url.Values{}
	params.Set("model", t.model)
	params.Set("language", language)
	params.Set("punctuate", "true")
	params.Set("smart_format", "true")
	params.Set("diarize", fmt.Sprintf("%t", withSpeakers))
	endpoint := "https://api.deepgram.com/v1/listen?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, file)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+t.apiKey)
	req.Header.Set("Content-Type", "audio/*")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("deepgram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode deepgram response: %w", err)
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return nil, fmt.Errorf("deepgram returned no transcript")
	}

	channel := parsed.Results.Channels[0]
	alt := channel.Alternatives[0]

	result := &TranscriptResult{
		Text:                alt.Transcript,
		Language:            language,
		LanguageProbability: alt.Confidence,
		Duration:            parsed.Metadata.Duration,
		Segments:            wordsToSegments(alt.Words),
	}
	if channel.DetectedLanguage != "" {
		result.Language = channel.DetectedLanguage
		result.LanguageProbability = channel.LanguageConfidence
	}

	t.cache.put(cacheKey, result)
	return result, nil
}

// wordsToSegments groups diarized words into segments, breaking on
// sentence-ending punctuation, long pauses and speaker changes.
func wordsToSegments(words []deepgramWord) models.SegmentList {
	segments := models.SegmentList{}
	if len(words) == 0 {
		return segments
	}

	var (
		parts   []string
		start   = words[0].Start
		end     = words[0].End
		speaker = words[0].Speaker
	)

	flush := func() {
		if len(parts) == 0 {
			return
		}
		segments = append(segments, models.Segment{
			Start:   start,
			End:     end,
			Text:    strings.Join(parts, " "),
			Speaker: fmt.Sprintf("SPEAKER_%02d", speaker),
		})
		parts = nil
	}

	for i, w := range words {
		text := w.PunctuatedWord
		if text == "" {
			text = w.Word
		}

		if i > 0 {
			pause := w.Start - end
			if w.Speaker != speaker || pause > segmentPauseGap {
				flush()
			}
		}
		if len(parts) == 0 {
			start = w.Start
			speaker = w.Speaker
		}
		parts = append(parts, text)
		end = w.End

		if strings.HasSuffix(text, ".") || strings.HasSuffix(text, "!") || strings.HasSuffix(text, "?") {
			flush()
		}
	}
	flush()

	return segments
}

// transcriptCache is a small LRU keyed by file path and language. Repeat
// transcriptions of the same upload skip the provider call.
type transcriptCache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	entries map[string]*list.Element
}

type cacheEntry struct {
	key    string
	result *TranscriptResult
}

func newTranscriptCache(maxSize int) *transcriptCache {
	return &transcriptCache{
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *transcriptCache) get(key string) (*TranscriptResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).result, true
}

func (c *transcriptCache) put(key string, result *TranscriptResult) {
	if c.maxSize <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).result = result
		return
	}
	elem := c.order.PushFront(&cacheEntry{key: key, result: result})
	c.entries[key] = elem
	if c.order.Len() > c.maxSize {
		last := c.order.Back()
		if last != nil {
			c.order.Remove(last)
			delete(c.entries, last.Value.(*cacheEntry).key)
		}
	}
}
