package config

const (
	defaultDataDir  = "~/.local/share/recap/data"
	defaultLogDir   = "~/.local/share/recap/logs"
	defaultAPIBind  = "127.0.0.1:8000"
	defaultLogLevel = "info"
	defaultLogFmt   = "console"

	defaultPreprocessURL   = "http://preprocess:8001/preprocess/"
	defaultDiarizeURL      = "http://diarization:8004/diarization/"
	defaultTranscribeURL   = "http://whisper:8003/whisper/"
	defaultSummarizeURL    = "http://summarization:8005/summarization/"
	defaultProgressBaseURL = "http://gateway:8000/progress"

	// Stage calls routinely run for minutes; the shared ceiling matches the
	// slowest expected stage (transcription of long recordings).
	defaultRequestTimeout = 1200

	defaultMaxUploadBytes  = int64(10) << 30 // 10 GiB
	defaultUploadChunkSize = 10 << 20        // 10 MiB
)

func defaultAllowedExtensions() []string {
	return []string{".mp3", ".mp4", ".m4a", ".wav"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Stages: Stages{
			PreprocessURL:   defaultPreprocessURL,
			DiarizeURL:      defaultDiarizeURL,
			TranscribeURL:   defaultTranscribeURL,
			SummarizeURL:    defaultSummarizeURL,
			RequestTimeout:  defaultRequestTimeout,
			ProgressBaseURL: defaultProgressBaseURL,
		},
		Upload: Upload{
			MaxBytes:          defaultMaxUploadBytes,
			ChunkSizeBytes:    defaultUploadChunkSize,
			AllowedExtensions: defaultAllowedExtensions(),
		},
		Logging: Logging{
			Format: defaultLogFmt,
			Level:  defaultLogLevel,
		},
	}
}
