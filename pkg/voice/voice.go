// Package voice wraps the speech vendor's TTS and STT services behind a
// small capability interface so the vendor can be swapped without
// touching the transport layer.
package voice

import (
	"context"
	"io"

	"github.com/civicpulse/civicpulse/pkg/apperr"
)

// Format is an audio container/codec accepted by the vendor.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatPCM  Format = "pcm"
	FormatOpus Format = "opus"
)

// ParseFormat validates a client-supplied format string. Browser webm
// recordings carry Opus audio, so webm maps to opus. Anything else
// outside the vendor's set is an UnsupportedFormat.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "wav":
		return FormatWAV, nil
	case "pcm":
		return FormatPCM, nil
	case "opus", "webm":
		return FormatOpus, nil
	default:
		return "", apperr.New(apperr.KindUnsupportedFormat, "unsupported audio format %q", s)
	}
}

// ContentType returns the HTTP content type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatPCM:
		return "audio/pcm"
	case FormatOpus:
		return "audio/ogg"
	default:
		return "audio/wav"
	}
}

// WordTimestamp is one word-level subtitle boundary. The vendor
// guarantees timestamps preserve input word order.
type WordTimestamp struct {
	Text   string  `json:"text"`
	StartS float64 `json:"start_s"`
	StopS  float64 `json:"stop_s"`
}

// TimestampedSpeech is a full TTS render plus its subtitle timeline.
type TimestampedSpeech struct {
	Audio      []byte
	Timestamps []WordTimestamp
}

// TranscriptEvent is one message from a streaming STT session.
type TranscriptEvent struct {
	// Type is "transcript", "complete", or "error".
	Type string
	Text string
	Err  error
}

// Client is the voice capability set.
type Client interface {
	// TTS renders text to a complete audio clip.
	TTS(ctx context.Context, text, voiceID string, format Format) ([]byte, error)

	// TTSStream renders text to audio delivered incrementally.
	TTSStream(ctx context.Context, text, voiceID string, format Format) (io.ReadCloser, error)

	// TTSWithTimestamps renders text plus word-level timestamps for
	// subtitle synchronization.
	TTSWithTimestamps(ctx context.Context, text, voiceID string, format Format) (*TimestampedSpeech, error)

	// STT transcribes a complete audio clip.
	STT(ctx context.Context, audio []byte, format Format) (string, error)

	// STTStream transcribes audio incrementally, emitting partial
	// transcripts. The channel closes after a "complete" or "error"
	// event.
	STTStream(ctx context.Context, audio []byte, final bool, format Format) (<-chan TranscriptEvent, error)
}
