package config

import (
	"errors"
	"fmt"
	"net"

	"broll/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateStock(); err != nil {
		return err
	}
	if err := c.validateTimeline(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind must be host:port: %w", err)
	}
	if c.Paths.UploadDir == c.Paths.StagingDir {
		return errors.New("paths.upload_dir and paths.staging_dir must differ")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.EncodeConcurrency > c.Workflow.Workers {
		return errors.New("workflow.encode_concurrency must not exceed workflow.workers")
	}
	if c.Workflow.QueueCapacity < c.Workflow.Workers {
		return errors.New("workflow.queue_capacity must be at least workflow.workers")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageMemory, StorageSQLite:
		return nil
	default:
		return fmt.Errorf("storage.backend must be %q or %q", StorageMemory, StorageSQLite)
	}
}

func (c *Config) validateTranscription() error {
	if c.Transcription.Language != "" && language.ToISO2(c.Transcription.Language) == "" {
		return fmt.Errorf("transcription.language %q is not a recognized language", c.Transcription.Language)
	}
	switch c.Transcription.VADMethod {
	case "silero", "pyannote":
	default:
		return errors.New("transcription.vad_method must be silero or pyannote")
	}
	return nil
}

func (c *Config) validateStock() error {
	switch c.Stock.Orientation {
	case "portrait", "landscape", "square":
	default:
		return errors.New("stock.orientation must be portrait, landscape, or square")
	}
	switch c.Stock.Size {
	case "small", "medium", "large":
	default:
		return errors.New("stock.size must be small, medium, or large")
	}
	return nil
}

func (c *Config) validateTimeline() error {
	switch c.Timeline.Strategy {
	case StrategyKeyword, StrategyOff:
	default:
		return fmt.Errorf("timeline.strategy must be %q or %q", StrategyKeyword, StrategyOff)
	}
	if c.Timeline.MinConfidence < 0 || c.Timeline.MinConfidence > 1 {
		return errors.New("timeline.min_confidence must be between 0 and 1")
	}
	if c.Timeline.FPS > 120 {
		return errors.New("timeline.fps must be at most 120")
	}
	return nil
}
