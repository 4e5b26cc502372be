package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"broll/internal/config"
	"broll/internal/deps"
	"broll/internal/logging"
	"broll/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
	// SkipPreflight disables the startup LLM and stock API probes.
	SkipPreflight bool
	// OnReady is called with the bound API address once the daemon accepts
	// requests.
	OnReady func(addr string)
}

// Run starts the broll daemon and blocks until cmdCtx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logCfg := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		logCfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(&logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if !opts.SkipPreflight {
		for _, result := range preflight.Failed(preflight.RunAll(signalCtx, cfg)) {
			logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldImpact, "jobs needing this service will fail"),
				logging.String(logging.FieldErrorHint, "run 'broll doctor' for details"),
			)
		}
	}

	d, err := buildDaemon(cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	// Only the instance holding the lock writes the pid file.
	pidPath := pidFilePath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		logging.WarnWithContext(logger, "unable to write pid file", "pid_file_failed",
			logging.String("path", pidPath),
			logging.Error(err),
		)
	} else {
		defer os.Remove(pidPath)
	}

	logger.Info("broll daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("addr", d.Addr()),
		logging.Int("pid", os.Getpid()),
	)
	if opts.OnReady != nil {
		opts.OnReady(d.Addr())
	}

	<-signalCtx.Done()
	logger.Info("broll daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_stopping"),
	)
	return nil
}

func pidFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "brolld.pid")
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.Bool("stock_key_present", strings.TrimSpace(cfg.Stock.APIKey) != ""),
		logging.Bool("api_token_set", strings.TrimSpace(cfg.API.APIToken) != ""),
		logging.String("storage_backend", cfg.Storage.Backend),
		logging.String("timeline_strategy", cfg.Timeline.Strategy),
		logging.Bool("whisperx_cuda", cfg.Transcription.CUDAEnabled),
		logging.Bool("notifications_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	}
	for _, req := range deps.Requirements(cfg) {
		key := strings.ToLower(req.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", binaryAvailable(req.Command)),
			logging.String(key+"_binary", req.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
