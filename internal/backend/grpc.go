package backend

import (
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/speechgate/asr-gateway/internal/audio"
)

// buildRecognitionConfig derives the engine's native recognition config from
// a normalized request. The sample rate is sniffed from the audio container;
// sniff failures fall back to the default rate and never fail the request.
func buildRecognitionConfig(req *TranscriptionRequest) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            int32(audio.SampleRateOrDefault(req.Audio)),
		LanguageCode:               req.Language,
		EnableAutomaticPunctuation: true,
	}

	if req.EnableDiarization {
		maxSpeakers := req.MaxSpeakers
		if maxSpeakers <= 0 {
			maxSpeakers = DefaultMaxSpeakers
		}
		// Word offsets are only meaningful together with speaker attribution
		cfg.EnableWordTimeOffsets = true
		cfg.DiarizationConfig = &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MaxSpeakerCount:          int32(maxSpeakers),
		}
	}

	return cfg
}

// mapRecognizeResponse converts the engine's offline-recognize response into
// the normalized Result. Alternatives keep the engine's confidence ordering;
// word timings are converted to seconds. Word data is only populated when
// diarization was requested and the engine returned it.
func mapRecognizeResponse(resp *speechpb.RecognizeResponse, withWords bool, modelVersion string) *Result {
	result := &Result{ModelVersion: modelVersion}

	for _, r := range resp.GetResults() {
		seg := Segment{
			IsFinal:    true,
			ChannelTag: r.GetChannelTag(),
		}
		for _, alt := range r.GetAlternatives() {
			a := Alternative{
				Transcript: alt.GetTranscript(),
				Confidence: alt.GetConfidence(),
			}
			if withWords {
				for _, w := range alt.GetWords() {
					a.Words = append(a.Words, Word{
						Word:       w.GetWord(),
						StartTime:  w.GetStartTime().AsDuration().Seconds(),
						EndTime:    w.GetEndTime().AsDuration().Seconds(),
						SpeakerTag: w.GetSpeakerTag(),
					})
				}
			}
			seg.Alternatives = append(seg.Alternatives, a)
		}
		result.Segments = append(result.Segments, seg)
	}

	return result
}

// mapStreamingResult converts one streaming recognition result into a Segment.
// Streaming segments never carry word data; partial ones carry stability.
func mapStreamingResult(r *speechpb.StreamingRecognitionResult) Segment {
	seg := Segment{
		IsFinal:    r.GetIsFinal(),
		ChannelTag: r.GetChannelTag(),
		Stability:  r.GetStability(),
	}
	for _, alt := range r.GetAlternatives() {
		seg.Alternatives = append(seg.Alternatives, Alternative{
			Transcript: alt.GetTranscript(),
			Confidence: alt.GetConfidence(),
		})
	}
	return seg
}
