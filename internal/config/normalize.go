package config

import (
	"fmt"
	"net"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeWorkflow()
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	c.normalizeTranscription()
	c.normalizeLLM()
	if c.Keywords.BatchSize <= 0 {
		c.Keywords.BatchSize = defaultKeywordBatchSize
	}
	c.normalizeStock()
	c.normalizeTimeline()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.UploadDir) == "" {
		c.Paths.UploadDir = defaultUploadDir
	}
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if port, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(port) != "" {
		host, _, err := net.SplitHostPort(c.Paths.APIBind)
		if err != nil {
			host = ""
		}
		c.Paths.APIBind = net.JoinHostPort(host, strings.TrimSpace(port))
	}
	return nil
}

func (c *Config) normalizeAPI() {
	if c.API.MaxUploadMB <= 0 {
		c.API.MaxUploadMB = defaultMaxUploadMB
	}
	exts := make([]string, 0, len(c.API.AllowedExtensions))
	seen := make(map[string]struct{}, len(c.API.AllowedExtensions))
	for _, ext := range c.API.AllowedExtensions {
		normalized := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = defaultAllowedExtensions()
	}
	c.API.AllowedExtensions = exts
	c.API.APIToken = strings.TrimSpace(c.API.APIToken)
	if c.API.APIToken == "" {
		if value, ok := os.LookupEnv("BROLL_API_TOKEN"); ok {
			c.API.APIToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.QueueCapacity <= 0 {
		c.Workflow.QueueCapacity = defaultQueueCapacity
	}
	if c.Workflow.EncodeConcurrency <= 0 {
		c.Workflow.EncodeConcurrency = defaultEncodeConcurrency
	}
	if c.Workflow.ResolveConcurrency <= 0 {
		c.Workflow.ResolveConcurrency = defaultResolveConcurrency
	}
	if c.Workflow.JobTimeoutSeconds <= 0 {
		c.Workflow.JobTimeoutSeconds = defaultJobTimeoutSeconds
	}
	if c.Workflow.StagingMaxAgeHours <= 0 {
		c.Workflow.StagingMaxAgeHours = defaultStagingMaxAgeHours
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperXModel
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	c.Transcription.VADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.VADMethod))
	if c.Transcription.VADMethod == "" {
		c.Transcription.VADMethod = defaultWhisperXVADMethod
	}
	c.Transcription.HFToken = strings.TrimSpace(c.Transcription.HFToken)
	if c.Transcription.HFToken == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Transcription.HFToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Transcription.HFToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("BROLL_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeStock() {
	c.Stock.APIKey = strings.TrimSpace(c.Stock.APIKey)
	if c.Stock.APIKey == "" {
		if value, ok := os.LookupEnv("PEXELS_API_KEY"); ok {
			c.Stock.APIKey = strings.TrimSpace(value)
		}
	}
	c.Stock.BaseURL = strings.TrimRight(strings.TrimSpace(c.Stock.BaseURL), "/")
	if c.Stock.BaseURL == "" {
		c.Stock.BaseURL = defaultStockBaseURL
	}
	c.Stock.Orientation = strings.ToLower(strings.TrimSpace(c.Stock.Orientation))
	if c.Stock.Orientation == "" {
		c.Stock.Orientation = defaultStockOrientation
	}
	c.Stock.Size = strings.ToLower(strings.TrimSpace(c.Stock.Size))
	if c.Stock.Size == "" {
		c.Stock.Size = defaultStockSize
	}
	if c.Stock.TimeoutSeconds <= 0 {
		c.Stock.TimeoutSeconds = defaultStockTimeoutSeconds
	}
	if c.Stock.RequestsPerMinute <= 0 {
		c.Stock.RequestsPerMinute = defaultStockRequestsPerMin
	}
	if c.Stock.RetryAttempts <= 0 {
		c.Stock.RetryAttempts = defaultStockRetryAttempts
	}
	if c.Stock.MaxDownloadMB <= 0 {
		c.Stock.MaxDownloadMB = defaultStockMaxDownloadMB
	}
}

func (c *Config) normalizeTimeline() {
	c.Timeline.Strategy = strings.ToLower(strings.TrimSpace(c.Timeline.Strategy))
	if c.Timeline.Strategy == "" {
		c.Timeline.Strategy = defaultTimelineStrategy
	}
	if c.Timeline.FPS <= 0 {
		c.Timeline.FPS = defaultTimelineFPS
	}
	c.Timeline.VideoCodec = strings.TrimSpace(c.Timeline.VideoCodec)
	if c.Timeline.VideoCodec == "" {
		c.Timeline.VideoCodec = defaultVideoCodec
	}
	c.Timeline.AudioCodec = strings.TrimSpace(c.Timeline.AudioCodec)
	if c.Timeline.AudioCodec == "" {
		c.Timeline.AudioCodec = defaultAudioCodec
	}
	c.Timeline.Preset = strings.TrimSpace(c.Timeline.Preset)
	if c.Timeline.Preset == "" {
		c.Timeline.Preset = defaultEncoderPreset
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
