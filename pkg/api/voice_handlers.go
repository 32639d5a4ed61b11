package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicpulse/civicpulse/pkg/apperr"
	"github.com/civicpulse/civicpulse/pkg/voice"
)

const ttsRequestTimeout = 60 * time.Second

// requireVoice gates the voice group: without a configured vendor key
// every voice endpoint is 503.
func (h *handlers) requireVoice(c *gin.Context) {
	if h.deps.Voice == nil {
		writeError(c, http.StatusServiceUnavailable, apperr.New(apperr.KindConfig, "voice service is not configured"))
		return
	}
	c.Next()
}

type ttsRequest struct {
	Text         string `json:"text" binding:"required"`
	VoiceID      string `json:"voice_id"`
	OutputFormat string `json:"output_format"`
}

func (h *handlers) bindTTS(c *gin.Context) (ttsRequest, voice.Format, bool) {
	var req ttsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, apperr.New(apperr.KindConfig, "invalid request: %v", err))
		return req, "", false
	}
	if req.OutputFormat == "" {
		req.OutputFormat = "wav"
	}
	format, err := voice.ParseFormat(req.OutputFormat)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return req, "", false
	}
	return req, format, true
}

func (h *handlers) tts(c *gin.Context) {
	req, format, ok := h.bindTTS(c)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(c, ttsRequestTimeout)
	defer cancel()

	audio, err := h.deps.Voice.TTS(ctx, req.Text, req.VoiceID, format)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=speech.%s", format))
	c.Data(http.StatusOK, format.ContentType(), audio)
}

func (h *handlers) ttsStream(c *gin.Context) {
	req, format, ok := h.bindTTS(c)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(c, ttsRequestTimeout)
	defer cancel()

	stream, err := h.deps.Voice.TTSStream(ctx, req.Text, req.VoiceID, format)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	defer stream.Close()

	header := c.Writer.Header()
	header.Set("Content-Type", format.ContentType())
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=speech.%s", format))
	header.Set("Cache-Control", "no-cache")
	c.Writer.WriteHeader(http.StatusOK)

	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			c.Writer.Flush()
		}
		if err != nil {
			if err != io.EOF {
				h.logger.Warn("tts stream interrupted", "error", err)
			}
			return
		}
	}
}

func (h *handlers) ttsWithTimestamps(c *gin.Context) {
	req, format, ok := h.bindTTS(c)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(c, ttsRequestTimeout)
	defer cancel()

	speech, err := h.deps.Voice.TTSWithTimestamps(ctx, req.Text, req.VoiceID, format)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"audio_base64": base64.StdEncoding.EncodeToString(speech.Audio),
		"timestamps":   speech.Timestamps,
	})
}

type sttRequest struct {
	AudioBase64 string `json:"audio_base64" binding:"required"`
	InputFormat string `json:"input_format"`
}

func (h *handlers) stt(c *gin.Context) {
	var req sttRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, apperr.New(apperr.KindConfig, "invalid request: %v", err))
		return
	}
	format, audio, ok := h.decodeSTT(c, req.InputFormat, req.AudioBase64)
	if !ok {
		return
	}

	transcript, err := h.deps.Voice.STT(c.Request.Context(), audio, format)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcript": transcript})
}

type sttStreamRequest struct {
	AudioChunk  string `json:"audio_chunk" binding:"required"`
	IsFinal     bool   `json:"is_final"`
	InputFormat string `json:"input_format"`
}

// sttStream transcribes one uploaded chunk and streams partial
// transcripts back as SSE. The complete frame is only sent for the
// final chunk of a recording.
func (h *handlers) sttStream(c *gin.Context) {
	var req sttStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, apperr.New(apperr.KindConfig, "invalid request: %v", err))
		return
	}
	format, audio, ok := h.decodeSTT(c, req.InputFormat, req.AudioChunk)
	if !ok {
		return
	}

	events, err := h.deps.Voice.STTStream(c.Request.Context(), audio, req.IsFinal, format)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for ev := range events {
		var frame map[string]any
		switch ev.Type {
		case "transcript":
			frame = map[string]any{"type": "transcript", "text": ev.Text, "is_final": req.IsFinal}
		case "complete":
			if !req.IsFinal {
				continue
			}
			frame = map[string]any{"type": "complete"}
		case "error":
			frame = map[string]any{"type": "error", "message": ev.Err.Error()}
		default:
			continue
		}
		payload, err := json.Marshal(frame)
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return
		}
		c.Writer.Flush()
	}
}

func (h *handlers) decodeSTT(c *gin.Context, formatStr, audioB64 string) (voice.Format, []byte, bool) {
	if formatStr == "" {
		formatStr = "wav"
	}
	format, err := voice.ParseFormat(formatStr)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return "", nil, false
	}
	audio, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		writeError(c, http.StatusBadRequest, apperr.New(apperr.KindUnsupportedFormat, "audio payload is not valid base64"))
		return "", nil, false
	}
	return format, audio, true
}

func contextWithTimeout(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}
