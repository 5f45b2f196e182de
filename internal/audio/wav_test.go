package audio

import (
	"encoding/binary"
	"testing"
)

// buildWAV constructs a minimal RIFF/WAVE header with the given sample rate.
func buildWAV(sampleRate uint32, extraChunks bool) []byte {
	var b []byte
	b = append(b, []byte("RIFF")...)
	b = append(b, 0, 0, 0, 0) // overall size, unchecked
	b = append(b, []byte("WAVE")...)

	if extraChunks {
		// A LIST chunk before fmt, as some encoders emit
		b = append(b, []byte("LIST")...)
		b = binary.LittleEndian.AppendUint32(b, 4)
		b = append(b, []byte("INFO")...)
	}

	b = append(b, []byte("fmt ")...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, 1) // PCM
	b = binary.LittleEndian.AppendUint16(b, 1) // mono
	b = binary.LittleEndian.AppendUint32(b, sampleRate)
	b = binary.LittleEndian.AppendUint32(b, sampleRate*2) // byte rate
	b = binary.LittleEndian.AppendUint16(b, 2)            // block align
	b = binary.LittleEndian.AppendUint16(b, 16)           // bits per sample

	b = append(b, []byte("data")...)
	b = binary.LittleEndian.AppendUint32(b, 4)
	b = append(b, 0, 0, 0, 0)
	return b
}

func TestSniffSampleRate_WellFormed(t *testing.T) {
	for _, rate := range []uint32{8000, 16000, 44100, 48000} {
		got, err := SniffSampleRate(buildWAV(rate, false))
		if err != nil {
			t.Fatalf("SniffSampleRate(%d) failed: %v", rate, err)
		}
		if got != int(rate) {
			t.Errorf("Expected sample rate %d, got %d", rate, got)
		}
	}
}

func TestSniffSampleRate_FmtAfterOtherChunks(t *testing.T) {
	got, err := SniffSampleRate(buildWAV(22050, true))
	if err != nil {
		t.Fatalf("SniffSampleRate failed: %v", err)
	}
	if got != 22050 {
		t.Errorf("Expected 22050, got %d", got)
	}
}

func TestSniffSampleRate_Garbage(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte("not audio at all"),
		[]byte("RIFFxxxxMP3 "),
		buildWAV(16000, false)[:10],
	}

	for i, in := range inputs {
		if _, err := SniffSampleRate(in); err == nil {
			t.Errorf("Input %d: expected error for non-WAV bytes", i)
		}
	}
}

func TestSampleRateOrDefault(t *testing.T) {
	if got := SampleRateOrDefault([]byte("definitely not a wav file")); got != DefaultSampleRate {
		t.Errorf("Expected default %d for garbage, got %d", DefaultSampleRate, got)
	}

	if got := SampleRateOrDefault(buildWAV(8000, false)); got != 8000 {
		t.Errorf("Expected sniffed 8000, got %d", got)
	}
}
