package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/civicpulse/civicpulse/pkg/apperr"
)

const (
	// DefaultVoiceID is the vendor voice used when the request does not
	// name one.
	DefaultVoiceID = "m86j6D7UZpGzHsNu"

	defaultModel = "default"

	// pcmChunkBytes is 80ms of 24kHz mono 16-bit PCM, the frame size
	// the vendor's streaming STT endpoint expects.
	pcmChunkBytes = 3840

	ttsTimeout = 60 * time.Second
)

// GradiumClient talks to the Gradium speech API.
type GradiumClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

// NewGradiumClient builds a client for the given API key and base URL.
func NewGradiumClient(apiKey, baseURL string, logger *slog.Logger) *GradiumClient {
	return &GradiumClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: ttsTimeout},
		dialer:  websocket.DefaultDialer,
		logger:  logger.With("component", "voice"),
	}
}

type ttsRequest struct {
	ModelName    string `json:"model_name"`
	VoiceID      string `json:"voice_id"`
	Text         string `json:"text"`
	OutputFormat string `json:"output_format"`
}

// TTS renders text to a complete audio clip.
func (c *GradiumClient) TTS(ctx context.Context, text, voiceID string, format Format) ([]byte, error) {
	body, err := c.post(ctx, "/api/post/tts", ttsRequest{
		ModelName:    defaultModel,
		VoiceID:      orDefault(voiceID),
		Text:         text,
		OutputFormat: string(format),
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()
	audio, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading tts audio: %w", err)
	}
	return audio, nil
}

// TTSStream renders text to audio delivered incrementally. The caller
// must close the returned reader.
func (c *GradiumClient) TTSStream(ctx context.Context, text, voiceID string, format Format) (io.ReadCloser, error) {
	return c.post(ctx, "/api/post/tts/stream", ttsRequest{
		ModelName:    defaultModel,
		VoiceID:      orDefault(voiceID),
		Text:         text,
		OutputFormat: string(format),
	})
}

type timestampedResponse struct {
	AudioBase64 string          `json:"audio_base64"`
	Timestamps  []WordTimestamp `json:"timestamps"`
}

// TTSWithTimestamps renders text plus word-level timestamps.
func (c *GradiumClient) TTSWithTimestamps(ctx context.Context, text, voiceID string, format Format) (*TimestampedSpeech, error) {
	body, err := c.post(ctx, "/api/post/tts/timestamps", ttsRequest{
		ModelName:    defaultModel,
		VoiceID:      orDefault(voiceID),
		Text:         text,
		OutputFormat: string(format),
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp timestampedResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding timestamped tts response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("decoding tts audio payload: %w", err)
	}
	return &TimestampedSpeech{Audio: audio, Timestamps: resp.Timestamps}, nil
}

// STT transcribes a complete clip by running a streaming session to
// completion and joining the partial transcripts.
func (c *GradiumClient) STT(ctx context.Context, audio []byte, format Format) (string, error) {
	events, err := c.STTStream(ctx, audio, true, format)
	if err != nil {
		return "", err
	}
	var parts []string
	for ev := range events {
		switch ev.Type {
		case "transcript":
			if ev.Text != "" {
				parts = append(parts, ev.Text)
			}
		case "error":
			return "", ev.Err
		}
	}
	return strings.Join(parts, " "), nil
}

type sttSetup struct {
	ModelName   string `json:"model_name"`
	InputFormat string `json:"input_format"`
}

type sttMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// STTStream opens a websocket STT session, feeds the audio in fixed
// frames, and emits partial transcripts as they arrive. When final is
// true the session is closed after the audio so the vendor flushes a
// terminal transcript.
func (c *GradiumClient) STTStream(ctx context.Context, audio []byte, final bool, format Format) (<-chan TranscriptEvent, error) {
	wsURL, err := c.websocketURL("/api/ws/stt")
	if err != nil {
		return nil, err
	}

	header := http.Header{"X-API-Key": []string{c.apiKey}}
	conn, _, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dialing stt stream: %w", err)
	}

	if err := conn.WriteJSON(sttSetup{ModelName: defaultModel, InputFormat: string(format)}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending stt setup: %w", err)
	}

	events := make(chan TranscriptEvent, 8)
	go c.runSTT(ctx, conn, audio, final, events)
	return events, nil
}

func (c *GradiumClient) runSTT(ctx context.Context, conn *websocket.Conn, audio []byte, final bool, events chan<- TranscriptEvent) {
	defer close(events)
	defer conn.Close()

	// The consumer may abandon the channel mid-stream (client
	// disconnect); every send must also watch ctx so the goroutine and
	// the vendor connection are released.
	send := func(ev TranscriptEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		for off := 0; off < len(audio); off += pcmChunkBytes {
			end := off + pcmChunkBytes
			if end > len(audio) {
				end = len(audio)
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, audio[off:end]); err != nil {
				c.logger.Warn("stt audio write failed", "error", err)
				return
			}
		}
		if final {
			if err := conn.WriteJSON(sttMessage{Type: "end"}); err != nil {
				c.logger.Warn("stt end marker write failed", "error", err)
			}
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			send(TranscriptEvent{Type: "error", Err: err})
			return
		}
		var msg sttMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				send(TranscriptEvent{Type: "complete"})
			} else {
				send(TranscriptEvent{Type: "error", Err: fmt.Errorf("reading stt stream: %w", err)})
			}
			return
		}
		switch msg.Type {
		case "text":
			if !send(TranscriptEvent{Type: "transcript", Text: msg.Text}) {
				return
			}
		case "end_text":
			if msg.Text != "" && !send(TranscriptEvent{Type: "transcript", Text: msg.Text}) {
				return
			}
			send(TranscriptEvent{Type: "complete"})
			return
		case "error":
			send(TranscriptEvent{Type: "error", Err: fmt.Errorf("stt vendor error: %s", msg.Text)})
			return
		}
	}
}

func (c *GradiumClient) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding voice request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("building voice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling voice service: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("voice service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return resp.Body, nil
}

func (c *GradiumClient) websocketURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", apperr.Wrap(apperr.KindConfig, err, "invalid voice base URL")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

func orDefault(voiceID string) string {
	if voiceID == "" {
		return DefaultVoiceID
	}
	return voiceID
}
