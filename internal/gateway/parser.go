package gateway

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/speechgate/asr-gateway/internal/backend"
)

// maxRequestBody caps unary request bodies at a size comfortably above the
// auto-routing threshold.
const maxRequestBody = 64 << 20 // 64 MiB

// jsonInstance is the flat JSON request shape; the same shape appears inside
// an "instances" wrapper for batch-style callers (first instance only).
type jsonInstance struct {
	Audio              string         `json:"audio"`
	AudioBase64        string         `json:"audio_base64"`
	Language           string         `json:"language"`
	LanguageCode       string         `json:"language_code"`
	SpeakerDiarization bool           `json:"speaker_diarization"`
	MaxSpeakers        int            `json:"max_speakers"`
	Instances          []jsonInstance `json:"instances"`
}

// ParseRequest normalizes an arbitrary request encoding into a
// TranscriptionRequest. All parse failures are client errors; the caller
// maps them to HTTP 400.
func ParseRequest(r *http.Request, defaultLanguage string) (*backend.TranscriptionRequest, error) {
	transport, err := backend.ParseTransport(r.URL.Query().Get("transport"))
	if err != nil {
		return nil, err
	}

	req := &backend.TranscriptionRequest{
		Language:  queryLanguage(r, defaultLanguage),
		Transport: transport,
	}

	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil && contentType != "" {
		return nil, fmt.Errorf("unreadable content type %q", contentType)
	}

	switch {
	case mediaType == "multipart/form-data":
		if err := parseMultipart(r, req); err != nil {
			return nil, err
		}

	case mediaType == "application/json":
		if err := parseJSON(r, req); err != nil {
			return nil, err
		}

	case strings.HasPrefix(mediaType, "audio/") || mediaType == "application/octet-stream":
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		req.Audio = body

	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("no audio content in request")
	}
	return req, nil
}

func queryLanguage(r *http.Request, defaultLanguage string) string {
	q := r.URL.Query()
	if lang := q.Get("language"); lang != "" {
		return lang
	}
	if lang := q.Get("language_code"); lang != "" {
		return lang
	}
	return defaultLanguage
}

func parseMultipart(r *http.Request, req *backend.TranscriptionRequest) error {
	if err := r.ParseMultipartForm(maxRequestBody); err != nil {
		return fmt.Errorf("malformed multipart body: %w", err)
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		file, _, err = r.FormFile("file")
	}
	if err == nil {
		defer file.Close()
		audio, readErr := io.ReadAll(file)
		if readErr != nil {
			return fmt.Errorf("read audio field: %w", readErr)
		}
		req.Audio = audio
	}

	if lang := formValue(r, "language", "language_code"); lang != "" {
		req.Language = lang
	}

	if v := r.FormValue("speaker_diarization"); v != "" {
		req.EnableDiarization = strings.EqualFold(v, "true")
	}

	if v := r.FormValue("max_speakers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid max_speakers %q", v)
		}
		req.MaxSpeakers = n
	}

	return nil
}

func formValue(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := r.FormValue(name); v != "" {
			return v
		}
	}
	return ""
}

func parseJSON(r *http.Request, req *backend.TranscriptionRequest) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}

	var inst jsonInstance
	if err := json.Unmarshal(body, &inst); err != nil {
		return fmt.Errorf("malformed JSON body: %w", err)
	}

	// Batch-style wrapper: only the first instance is honored
	if len(inst.Instances) > 0 {
		inst = inst.Instances[0]
	}

	encoded := inst.Audio
	if encoded == "" {
		encoded = inst.AudioBase64
	}
	if encoded != "" {
		audio, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("invalid base64 audio: %w", err)
		}
		req.Audio = audio
	}

	if inst.Language != "" {
		req.Language = inst.Language
	} else if inst.LanguageCode != "" {
		req.Language = inst.LanguageCode
	}

	req.EnableDiarization = inst.SpeakerDiarization
	if inst.MaxSpeakers > 0 {
		req.MaxSpeakers = inst.MaxSpeakers
	}

	return nil
}
