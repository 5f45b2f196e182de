package audio

import (
	"encoding/binary"
	"fmt"
)

// DefaultSampleRate is assumed whenever the audio container cannot be parsed.
const DefaultSampleRate = 16000

// SniffSampleRate extracts the sample rate from a RIFF/WAVE container.
// Returns an error for anything that is not a well-formed WAV header;
// callers are expected to fall back to DefaultSampleRate.
func SniffSampleRate(data []byte) (int, error) {
	if len(data) < 12 {
		return 0, fmt.Errorf("audio too short for a RIFF header")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF/WAVE container")
	}

	// Walk the chunk list looking for "fmt ". Chunks are a 4-byte id,
	// a little-endian 4-byte size, then the payload (padded to even length).
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		if chunkID == "fmt " {
			// SampleRate sits after the format tag and channel count.
			if chunkSize < 8 || body+8 > len(data) {
				return 0, fmt.Errorf("malformed fmt chunk")
			}
			rate := int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			if rate <= 0 {
				return 0, fmt.Errorf("invalid sample rate %d", rate)
			}
			return rate, nil
		}

		if chunkSize%2 != 0 {
			chunkSize++
		}
		offset = body + chunkSize
	}

	return 0, fmt.Errorf("no fmt chunk found")
}

// SampleRateOrDefault sniffs the sample rate and falls back to
// DefaultSampleRate on any parse failure. Sniffing is best effort;
// an unreadable container must never fail the request.
func SampleRateOrDefault(data []byte) int {
	rate, err := SniffSampleRate(data)
	if err != nil {
		return DefaultSampleRate
	}
	return rate
}
