package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	UploadDir  string `toml:"upload_dir"`
	OutputDir  string `toml:"output_dir"`
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// API contains HTTP surface limits.
type API struct {
	MaxUploadMB       int      `toml:"max_upload_mb"`
	AllowedExtensions []string `toml:"allowed_extensions"`
	APIToken          string   `toml:"api_token"`
}

// Workflow contains worker pool sizing and job limits.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueueCapacity      int `toml:"queue_capacity"`
	EncodeConcurrency  int `toml:"encode_concurrency"`
	ResolveConcurrency int `toml:"resolve_concurrency"`
	JobTimeoutSeconds  int `toml:"job_timeout_seconds"`
	StagingMaxAgeHours int `toml:"staging_max_age_hours"`
}

// Storage selects the job record backend.
type Storage struct {
	Backend string `toml:"backend"`
}

// Transcription contains WhisperX settings.
type Transcription struct {
	Model       string `toml:"model"`
	Language    string `toml:"language"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
}

// LLM contains the keyword service connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Keywords contains batching settings for keyword extraction.
type Keywords struct {
	BatchSize int `toml:"batch_size"`
}

// Stock contains stock footage search settings.
type Stock struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Orientation       string `toml:"orientation"`
	Size              string `toml:"size"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	RetryAttempts     int    `toml:"retry_attempts"`
	MaxDownloadMB     int    `toml:"max_download_mb"`
}

// Timeline contains substitution policy and output encoding settings.
type Timeline struct {
	Strategy      string  `toml:"strategy"`
	MinConfidence float64 `toml:"min_confidence"`
	FPS           int     `toml:"fps"`
	VideoCodec    string  `toml:"video_codec"`
	AudioCodec    string  `toml:"audio_codec"`
	Preset        string  `toml:"preset"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications configures optional ntfy alerts for finished jobs.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Config encapsulates all configuration values for broll.
//
// Configuration sections by subsystem:
//   - Paths: upload, output, staging and log directories plus API bind address
//   - API: upload limits and optional bearer token
//   - Workflow: worker pool, queue admission and per-job deadline
//   - Storage: job record backend
//   - Transcription: WhisperX model settings
//   - LLM: keyword service connection
//   - Keywords: batch size
//   - Stock: stock footage API
//   - Timeline: substitution policy and encoder settings
//   - Notifications: ntfy alerts on job completion and failure
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Workflow      Workflow      `toml:"workflow"`
	Storage       Storage       `toml:"storage"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Keywords      Keywords      `toml:"keywords"`
	Stock         Stock         `toml:"stock"`
	Timeline      Timeline      `toml:"timeline"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("broll.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.UploadDir, c.Paths.OutputDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	redacted.LLM.APIKey = redact(c.LLM.APIKey)
	redacted.Stock.APIKey = redact(c.Stock.APIKey)
	redacted.API.APIToken = redact(c.API.APIToken)
	redacted.Transcription.HFToken = redact(c.Transcription.HFToken)
	return toml.Marshal(redacted)
}

func redact(secret string) string {
	if strings.TrimSpace(secret) == "" {
		return ""
	}
	return "********"
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// JobDatabasePath returns the SQLite job record location.
func (c *Config) JobDatabasePath() string {
	return filepath.Join(c.Paths.LogDir, "jobs.db")
}

// LogPath returns the daemon log file written alongside stdout.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "broll.log")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "brolld.lock")
}

// MaxUploadBytes returns the upload size ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.API.MaxUploadMB) << 20
}

// MaxDownloadBytes returns the stock clip size ceiling in bytes.
func (c *Config) MaxDownloadBytes() int64 {
	return int64(c.Stock.MaxDownloadMB) << 20
}

// JobTimeout returns the per-job processing deadline.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Workflow.JobTimeoutSeconds) * time.Second
}

// StagingMaxAge returns the age after which abandoned staging scopes are swept.
func (c *Config) StagingMaxAge() time.Duration {
	return time.Duration(c.Workflow.StagingMaxAgeHours) * time.Hour
}

// AllowedExtension reports whether the file name carries an accepted video extension.
func (c *Config) AllowedExtension(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range c.API.AllowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

// ValidateCredentials ensures the external service keys needed to process jobs
// are present. Load does not require them so diagnostics work without keys.
func (c *Config) ValidateCredentials() error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required. Set OPENAI_API_KEY env var or edit %s (create with 'broll config init')", defaultPath)
	}
	if strings.TrimSpace(c.Stock.APIKey) == "" && c.Timeline.Strategy != StrategyOff {
		return fmt.Errorf("stock.api_key is required. Set PEXELS_API_KEY env var or edit %s", defaultPath)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
