package protocol

import "time"

// SynthesisRequest asks the runtime to turn text into speech.
type SynthesisRequest struct {
	RequestID   string  `json:"request_id"`
	Text        string  `json:"text"`
	Speaker     string  `json:"speaker"`
	Filename    string  `json:"filename,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxChars    int     `json:"max_chars,omitempty"`
	NoChunking  bool    `json:"no_chunking,omitempty"`
}

// SynthesisResult carries the final audio back to the requester. Audio is
// base64-encoded WAV; ChunkInfo lists "{id}: {n} chars" per attempted chunk.
type SynthesisResult struct {
	RequestID         string    `json:"request_id"`
	AudioBase64       string    `json:"audio_base64,omitempty"`
	Filename          string    `json:"filename,omitempty"`
	SampleRate        int       `json:"sample_rate,omitempty"`
	Format            string    `json:"format,omitempty"`
	Chunked           bool      `json:"chunked"`
	ChunkInfo         []string  `json:"chunk_info,omitempty"`
	OriginalLength    int       `json:"original_length,omitempty"`
	ChunksProcessed   int       `json:"chunks_processed,omitempty"`
	Error             string    `json:"error,omitempty"`
	AvailableSpeakers []string  `json:"available_speakers,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

const (
	SubjectSynthesisRequest = "tts.synthesize"
	SubjectSynthesisResult  = "tts.result"
)
