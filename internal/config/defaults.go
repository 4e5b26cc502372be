package config

const (
	defaultConfigPath          = "~/.config/broll/config.toml"
	defaultUploadDir           = "~/.local/share/broll/uploads"
	defaultOutputDir           = "~/.local/share/broll/outputs"
	defaultStagingDir          = "~/.local/share/broll/staging"
	defaultLogDir              = "~/.local/share/broll/logs"
	defaultAPIBind             = "127.0.0.1:5000"
	defaultMaxUploadMB         = 16
	defaultWorkers             = 2
	defaultQueueCapacity       = 32
	defaultEncodeConcurrency   = 1
	defaultResolveConcurrency  = 4
	defaultJobTimeoutSeconds   = 1800
	defaultStagingMaxAgeHours  = 24
	defaultStorageBackend      = StorageMemory
	defaultWhisperXModel       = "small"
	defaultWhisperXVADMethod   = "silero"
	defaultLLMBaseURL          = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel            = "gpt-4o-mini"
	defaultLLMTitle            = "broll keyword extraction"
	defaultLLMTimeoutSeconds   = 60
	defaultKeywordBatchSize    = 20
	defaultStockBaseURL        = "https://api.pexels.com"
	defaultStockOrientation    = "portrait"
	defaultStockSize           = "medium"
	defaultStockTimeoutSeconds = 30
	defaultStockRequestsPerMin = 120
	defaultStockRetryAttempts  = 3
	defaultStockMaxDownloadMB  = 200
	defaultTimelineStrategy    = StrategyKeyword
	defaultTimelineFPS         = 30
	defaultVideoCodec          = "libx264"
	defaultAudioCodec          = "aac"
	defaultEncoderPreset       = "veryfast"
	defaultNtfyTimeoutSeconds  = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Substitution strategies.
const (
	StrategyKeyword = "keyword"
	StrategyOff     = "off"
)

func defaultAllowedExtensions() []string {
	return []string{"mp4", "mov", "avi"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir:  defaultUploadDir,
			OutputDir:  defaultOutputDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		API: API{
			MaxUploadMB:       defaultMaxUploadMB,
			AllowedExtensions: defaultAllowedExtensions(),
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueueCapacity:      defaultQueueCapacity,
			EncodeConcurrency:  defaultEncodeConcurrency,
			ResolveConcurrency: defaultResolveConcurrency,
			JobTimeoutSeconds:  defaultJobTimeoutSeconds,
			StagingMaxAgeHours: defaultStagingMaxAgeHours,
		},
		Storage: Storage{
			Backend: defaultStorageBackend,
		},
		Transcription: Transcription{
			Model:     defaultWhisperXModel,
			VADMethod: defaultWhisperXVADMethod,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Keywords: Keywords{
			BatchSize: defaultKeywordBatchSize,
		},
		Stock: Stock{
			BaseURL:           defaultStockBaseURL,
			Orientation:       defaultStockOrientation,
			Size:              defaultStockSize,
			TimeoutSeconds:    defaultStockTimeoutSeconds,
			RequestsPerMinute: defaultStockRequestsPerMin,
			RetryAttempts:     defaultStockRetryAttempts,
			MaxDownloadMB:     defaultStockMaxDownloadMB,
		},
		Timeline: Timeline{
			Strategy:   defaultTimelineStrategy,
			FPS:        defaultTimelineFPS,
			VideoCodec: defaultVideoCodec,
			AudioCodec: defaultAudioCodec,
			Preset:     defaultEncoderPreset,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
