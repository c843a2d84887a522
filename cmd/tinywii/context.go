package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"tinywii/internal/config"
	"tinywii/internal/logging"
)

type commandContext struct {
	configFlag   *string
	mountFlag    *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, mountFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		mountFlag:    mountFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if mount := flagValue(c.mountFlag); mount != "" {
			expanded, err := config.ExpandPath(mount)
			if err != nil {
				c.configErr = fmt.Errorf("resolve mount point: %w", err)
				return
			}
			cfg.Paths.MountPoint = expanded
		}
		if level := flagValue(c.logLevelFlag); level != "" {
			cfg.Logging.Level = strings.ToLower(level)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// requireMount loads the config and fails when no drive is configured.
func (c *commandContext) requireMount() (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireMountPoint(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logger builds the logger for headless commands. Logs go to stderr and the
// log file.
func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg, true)
}

func flagValue(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
