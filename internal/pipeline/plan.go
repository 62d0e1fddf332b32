package pipeline

import (
	"encoding/json"
	"strings"

	"recap/internal/services"
)

// Stage names in execution order.
const (
	StagePreprocess = "preprocess"
	StageDiarize    = "diarize"
	StageTranscribe = "transcribe"
	StageSummarize  = "summarize"
)

// Span assigns a stage its progress sub-range. Gaps between spans are
// reserved slack, not an error.
type Span struct {
	Name string
	Min  float64
	Max  float64
}

// UploadSpan covers the implicit upload stage that runs before the pipeline.
var UploadSpan = Span{Name: "upload", Min: 0, Max: 2}

// Spans lists the four dispatched stages in order with their progress
// sub-ranges.
func Spans() []Span {
	return []Span{
		{Name: StagePreprocess, Min: 5, Max: 25},
		{Name: StageDiarize, Min: 26, Max: 50},
		{Name: StageTranscribe, Min: 51, Max: 80},
		{Name: StageSummarize, Min: 81, Max: 100},
	}
}

// ProgressRef is the callback triple handed to every stage so it can report
// sub-progress inside its span via the progress ingress endpoint.
type ProgressRef struct {
	TaskID      string  `json:"task_id,omitempty"`
	ProgressURL string  `json:"progress_url,omitempty"`
	ProgressMin float64 `json:"progress_min"`
	ProgressMax float64 `json:"progress_max"`
}

// Segment is one diarized speaker turn.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// PreprocessRequest converts the raw upload into normalized audio.
type PreprocessRequest struct {
	InputPath string `json:"input_path"`
	OutputDir string `json:"output_dir"`
	ProgressRef
}

// PreprocessResult is the preprocess stage's declared output reference.
type PreprocessResult struct {
	PreprocessedFilePath string `json:"preprocessed_file_path"`
}

// DiarizeRequest splits normalized audio into speaker segments.
type DiarizeRequest struct {
	AudioPath string `json:"audio_path"`
	ProgressRef
}

// DiarizeResult carries the speaker segment list.
type DiarizeResult struct {
	Segments []Segment `json:"segments"`
}

// TranscribeRequest runs ASR over the audio guided by diarized segments.
type TranscribeRequest struct {
	Filename  string    `json:"filename"`
	OutputDir string    `json:"output_dir"`
	Segments  []Segment `json:"segments"`
	ProgressRef
}

// TranscribeResult references the transcript artifacts written by the stage.
type TranscribeResult struct {
	TranscriptionFilePath string `json:"transcription_file_path"`
	WordSegmentsPath      string `json:"word_segments_path"`
	UtterancesPath        string `json:"utterances_path"`
}

// SummarizeRequest produces the final summary from the transcript.
type SummarizeRequest struct {
	TranscriptPath string `json:"transcript_path"`
	OutputDir      string `json:"output_dir"`
	ProgressRef
}

// SummarizeResult references the summary artifact.
type SummarizeResult struct {
	SummaryPath string `json:"summary_path"`
}

// decodePreprocess validates the preprocess response at the orchestrator
// boundary. The stage historically answers with a one-element JSON array;
// a bare object is accepted too.
func decodePreprocess(raw json.RawMessage) (PreprocessResult, error) {
	var result PreprocessResult
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []PreprocessResult
		if err := json.Unmarshal(raw, &list); err != nil {
			return result, services.Wrap(services.ErrUpstream, StagePreprocess, "decode response", "", err)
		}
		if len(list) == 0 {
			return result, services.Wrap(services.ErrUpstream, StagePreprocess, "decode response", "empty result list", nil)
		}
		result = list[0]
	} else if err := json.Unmarshal(raw, &result); err != nil {
		return result, services.Wrap(services.ErrUpstream, StagePreprocess, "decode response", "", err)
	}

	if strings.TrimSpace(result.PreprocessedFilePath) == "" {
		return result, services.Wrap(services.ErrUpstream, StagePreprocess, "validate response", "missing preprocessed_file_path", nil)
	}
	return result, nil
}

func decodeDiarize(raw json.RawMessage) (DiarizeResult, error) {
	var result DiarizeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, services.Wrap(services.ErrUpstream, StageDiarize, "decode response", "", err)
	}
	// An empty segment list is legal: silence or a single speaker the model
	// could not split still transcribes fine.
	return result, nil
}

func decodeTranscribe(raw json.RawMessage) (TranscribeResult, error) {
	var result TranscribeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, services.Wrap(services.ErrUpstream, StageTranscribe, "decode response", "", err)
	}
	if strings.TrimSpace(result.TranscriptionFilePath) == "" {
		return result, services.Wrap(services.ErrUpstream, StageTranscribe, "validate response", "missing transcription_file_path", nil)
	}
	return result, nil
}

func decodeSummarize(raw json.RawMessage) (SummarizeResult, error) {
	var result SummarizeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, services.Wrap(services.ErrUpstream, StageSummarize, "decode response", "", err)
	}
	if strings.TrimSpace(result.SummaryPath) == "" {
		return result, services.Wrap(services.ErrUpstream, StageSummarize, "validate response", "missing summary_path", nil)
	}
	return result, nil
}
