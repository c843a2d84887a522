package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateUpdate(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.PreloaderThreads < 0 {
		return errors.New("pipeline.preloader_threads must be zero (auto) or positive")
	}
	if c.Pipeline.ProcessorThreads < 0 {
		return errors.New("pipeline.processor_threads must be zero (auto) or positive")
	}
	if c.Pipeline.PreloaderThreads > 0 && c.Pipeline.ProcessorThreads > 0 &&
		c.Pipeline.ProcessorThreads < c.Pipeline.PreloaderThreads {
		return fmt.Errorf("pipeline.processor_threads (%d) must be at least pipeline.preloader_threads (%d)",
			c.Pipeline.ProcessorThreads, c.Pipeline.PreloaderThreads)
	}
	if c.Pipeline.FallbackPollMillis < 10 {
		return errors.New("pipeline.fallback_poll_ms must be at least 10")
	}
	if c.Pipeline.RedrawPerSecond < 1 {
		return errors.New("pipeline.redraw_per_second must be positive")
	}
	return nil
}

func (c *Config) validateTransfer() error {
	size := c.Transfer.SplitSizeBytes
	if size < MinSplitSize || size > MaxSplitSize {
		return fmt.Errorf("transfer.split_size_bytes must be between %d and %d", MinSplitSize, MaxSplitSize)
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.DebounceMillis < 0 {
		return errors.New("watch.debounce_ms must be non-negative")
	}
	return nil
}

func (c *Config) validateUpdate() error {
	if !c.Update.Enabled {
		return nil
	}
	for key, raw := range map[string]string{
		"update.url":        c.Update.URL,
		"update.titles_url": c.Update.TitlesURL,
		"update.redump_url": c.Update.RedumpURL,
	} {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}
	if c.Update.TimeoutSeconds <= 0 {
		return errors.New("update.timeout_seconds must be positive")
	}
	if c.Update.MaxAttempts <= 0 {
		return errors.New("update.max_attempts must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
