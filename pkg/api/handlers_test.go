package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpulse/civicpulse/pkg/agent"
	"github.com/civicpulse/civicpulse/pkg/artifact"
	"github.com/civicpulse/civicpulse/pkg/catalog"
	"github.com/civicpulse/civicpulse/pkg/cluster"
	"github.com/civicpulse/civicpulse/pkg/report"
	"github.com/civicpulse/civicpulse/pkg/voice"
)

type fakeLLM struct {
	planJSON     string
	analysisJSON string
	textReply    string
	embedding    []float32
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string, out any) error {
	switch {
	case strings.Contains(prompt, "planning how to answer") || strings.Contains(prompt, "Choose the SINGLE"):
		return json.Unmarshal([]byte(f.planJSON), out)
	case strings.Contains(prompt, "providing insights"):
		return json.Unmarshal([]byte(f.analysisJSON), out)
	case strings.Contains(prompt, "PDF report"):
		return json.Unmarshal([]byte(`{"answer":"Summary.","rationale":["663 requests"],"key_metrics":["663 requests in Recreation","562 requests in Roads"]}`), out)
	default:
		return errors.New("unexpected prompt")
	}
}

func (f *fakeLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f.textReply, nil
}

func (f *fakeLLM) GenerateSearchKeywords(ctx context.Context, question string) (string, error) {
	return "parks recreation", nil
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.embedding, nil
}

type fakeVoice struct {
	ttsAudio   []byte
	transcript []voice.TranscriptEvent
}

func (f *fakeVoice) TTS(ctx context.Context, text, voiceID string, format voice.Format) ([]byte, error) {
	return f.ttsAudio, nil
}

func (f *fakeVoice) TTSStream(ctx context.Context, text, voiceID string, format voice.Format) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.ttsAudio)), nil
}

func (f *fakeVoice) TTSWithTimestamps(ctx context.Context, text, voiceID string, format voice.Format) (*voice.TimestampedSpeech, error) {
	return &voice.TimestampedSpeech{
		Audio: f.ttsAudio,
		Timestamps: []voice.WordTimestamp{
			{Text: "Hello", StartS: 0, StopS: 0.4},
			{Text: "world", StartS: 0.4, StopS: 0.8},
		},
	}, nil
}

func (f *fakeVoice) STT(ctx context.Context, audio []byte, format voice.Format) (string, error) {
	var parts []string
	for _, ev := range f.transcript {
		if ev.Type == "transcript" {
			parts = append(parts, ev.Text)
		}
	}
	return strings.Join(parts, " "), nil
}

func (f *fakeVoice) STTStream(ctx context.Context, audio []byte, final bool, format voice.Format) (<-chan voice.TranscriptEvent, error) {
	ch := make(chan voice.TranscriptEvent, len(f.transcript))
	for _, ev := range f.transcript {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func testDeps(t *testing.T, withPredictor, withVoice bool) Deps {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top10.csv"),
		[]byte("category,count\nRecreation,663\nRoads,562\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "freq.csv"),
		[]byte("month,count\n2026-01,100\n2026-02,140\n2026-03,160\n"), 0o644))

	reg, err := catalog.NewRegistry([]catalog.Product{
		{
			ID:          "top10_volume_30d",
			DisplayName: "Top Categories",
			Description: "Highest request volume over 30 days",
			SourceFile:  "top10.csv",
			RouteHint:   "/dashboard/analytics/frequency",
		},
		{
			ID:          "frequency_over_time",
			DisplayName: "Request Frequency",
			Description: "Monthly request counts",
			SourceFile:  "freq.csv",
		},
	})
	require.NoError(t, err)
	store := artifact.NewStore(reg, dir)

	lc := &fakeLLM{
		planJSON:     `[{"product": "top10_volume_30d", "why": "top categories"}]`,
		analysisJSON: `{"answer": "Recreation leads with 663.", "rationale": ["663"], "key_metrics": ["663"]}`,
		textReply:    "Happy to help with city services.",
		embedding:    []float32{1, 0},
	}

	logger := slog.New(slog.DiscardHandler)
	var predictor *cluster.Predictor
	if withPredictor {
		idx, err := cluster.NewIndex(
			[]cluster.Centroid{{ID: 1, Label: "Parks", Vector: []float32{1, 0}}},
			[]cluster.Centroid{{ID: 10, Parent: 1, Label: "Playgrounds", Vector: []float32{1, 0}}},
		)
		require.NoError(t, err)
		predictor = cluster.NewPredictor(lc, lc, idx)
	}

	orch := agent.NewOrchestrator(lc, reg, store, predictor, logger)

	deps := Deps{
		Orchestrator: orch,
		Predictor:    predictor,
		Report:       report.NewBuilder(lc, labelSource{predictor}, store, logger),
		Logger:       logger,
	}
	if withVoice {
		deps.Voice = &fakeVoice{
			ttsAudio: append([]byte("RIFF"), []byte("fake-wav")...),
			transcript: []voice.TranscriptEvent{
				{Type: "transcript", Text: "show me parks"},
				{Type: "complete"},
			},
		}
	}
	return deps
}

// labelSource adapts an optional predictor to the report builder.
type labelSource struct {
	predictor *cluster.Predictor
}

func (l labelSource) Labels(parentID, childID int) (string, string) {
	if l.predictor == nil {
		return "Cluster", "Sub-cluster"
	}
	return l.predictor.Labels(parentID, childID)
}

func serve(t *testing.T, deps Deps, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	srv := NewServer("0", "http://localhost:3000", deps)
	rec := httptest.NewRecorder()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func parseSSE(t *testing.T, body string) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), frame)
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []map[string]any) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev["type"].(string)
	}
	return out
}

func TestRootBanner(t *testing.T) {
	rec := serve(t, testDeps(t, false, false), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "CivicPulse Analytics API", "status": "running"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	rec := serve(t, testDeps(t, false, true), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["agent_initialized"])
	assert.Equal(t, true, body["voice_initialized"])
}

func TestChatStreamDeepAnalysis(t *testing.T) {
	rec := serve(t, testDeps(t, false, false), http.MethodPost, "/api/chat/stream",
		`{"message": "What are the top service categories?", "mode": "deep_analysis"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	events := parseSSE(t, rec.Body.String())
	assert.Equal(t, []string{
		"user", "thought", "plan", "thought", "navigation", "thought", "answer", "complete",
	}, eventTypes(events))

	nav := events[4]
	assert.Equal(t, "/dashboard/analytics/frequency", nav["data"].(map[string]any)["url"])
}

func TestChatStreamAutoConfirmation(t *testing.T) {
	rec := serve(t, testDeps(t, false, false), http.MethodPost, "/api/chat/stream",
		`{"message": "Give me an analysis", "mode": "auto"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSE(t, rec.Body.String())
	assert.Equal(t, []string{"user", "confirmation"}, eventTypes(events))
}

func TestChatStreamRejectsUnknownMode(t *testing.T) {
	rec := serve(t, testDeps(t, false, false), http.MethodPost, "/api/chat/stream",
		`{"message": "hi", "mode": "bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatMerged(t *testing.T) {
	rec := serve(t, testDeps(t, false, false), http.MethodPost, "/api/chat",
		`{"message": "top categories?", "mode": "deep_analysis"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var merged agent.Merged
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &merged))
	assert.Equal(t, "Recreation leads with 663.", merged.Answer)
	require.Len(t, merged.Plan, 1)
}

func TestClusterPredict(t *testing.T) {
	rec := serve(t, testDeps(t, true, false), http.MethodPost, "/api/cluster/predict",
		`{"message": "broken streetlights near King Street"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var prediction cluster.Prediction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prediction))
	assert.Equal(t, 1, prediction.ParentID)
	assert.Equal(t, 10, prediction.ChildID)
	assert.Greater(t, prediction.Confidence, 0.0)
	assert.LessOrEqual(t, prediction.Confidence, 1.0)
}

func TestClusterPredictWithoutStorage(t *testing.T) {
	rec := serve(t, testDeps(t, false, false), http.MethodPost, "/api/cluster/predict",
		`{"message": "anything"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalyticsVisit(t *testing.T) {
	rec := serve(t, testDeps(t, true, false), http.MethodPost, "/api/chat/analytics-visit",
		`{"parent_cluster_id": 1, "child_cluster_id": 10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var visit agent.Visit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &visit))
	assert.Equal(t, "/dashboard/analytics/frequency", visit.URL)
	assert.NotEmpty(t, visit.Discussion)
}

func TestReportGenerate(t *testing.T) {
	rec := serve(t, testDeps(t, true, false), http.MethodPost, "/api/report/generate",
		`{"parent_cluster_id": 1, "child_cluster_id": 10, "discussion": "Recreation dominates recent requests."}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", rec.Body.String()[:4])
}

func TestVoiceDisabled(t *testing.T) {
	rec := serve(t, testDeps(t, false, false), http.MethodPost, "/api/voice/tts",
		`{"text": "hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTTS(t *testing.T) {
	rec := serve(t, testDeps(t, false, true), http.MethodPost, "/api/voice/tts",
		`{"text": "Hello world", "output_format": "wav"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF", rec.Body.String()[:4])
}

func TestTTSRejectsUnknownFormat(t *testing.T) {
	rec := serve(t, testDeps(t, false, true), http.MethodPost, "/api/voice/tts",
		`{"text": "Hello", "output_format": "mp3"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UnsupportedFormat", body["kind"])
}

func TestTTSWithTimestamps(t *testing.T) {
	rec := serve(t, testDeps(t, false, true), http.MethodPost, "/api/voice/tts/with-timestamps",
		`{"text": "Hello world", "voice_id": "v1", "output_format": "wav"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AudioBase64 string                `json:"audio_base64"`
		Timestamps  []voice.WordTimestamp `json:"timestamps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	audio, err := base64.StdEncoding.DecodeString(body.AudioBase64)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(audio[:4]))

	require.GreaterOrEqual(t, len(body.Timestamps), 2)
	joined := body.Timestamps[0].Text + " " + body.Timestamps[1].Text
	assert.Equal(t, "Hello world", joined)
	assert.GreaterOrEqual(t, body.Timestamps[1].StartS, body.Timestamps[0].StopS)
}

func TestSTT(t *testing.T) {
	audio := base64.StdEncoding.EncodeToString([]byte("pcm-bytes"))
	rec := serve(t, testDeps(t, false, true), http.MethodPost, "/api/voice/stt",
		`{"audio_base64": "`+audio+`", "input_format": "webm"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"transcript": "show me parks"}`, rec.Body.String())
}

func TestSTTStream(t *testing.T) {
	audio := base64.StdEncoding.EncodeToString([]byte("pcm-bytes"))
	rec := serve(t, testDeps(t, false, true), http.MethodPost, "/api/voice/stt/stream",
		`{"audio_chunk": "`+audio+`", "is_final": true, "input_format": "pcm"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "transcript", events[0]["type"])
	assert.Equal(t, "show me parks", events[0]["text"])
	assert.Equal(t, "complete", events[1]["type"])
}
