package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"reframe/internal/config"
	"reframe/internal/daemonctl"
	"reframe/internal/logging"
	"reframe/internal/queue"
	"reframe/internal/queueaccess"
)

const daemonPingTimeout = 750 * time.Millisecond

type commandContext struct {
	configFlag   *string
	bindFlag     *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, bindFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		bindFlag:   bindFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) apiBind(cfg *config.Config) string {
	if c.bindFlag != nil {
		if bind := strings.TrimSpace(*c.bindFlag); bind != "" {
			return bind
		}
	}
	return cfg.Server.Bind
}

func (c *commandContext) logLevel(fallback string) string {
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return level
		}
	}
	return fallback
}

// localLogger writes to stderr so stdout stays free for tables and JSON.
// Local runs default to warnings only.
func (c *commandContext) localLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:       c.logLevel("warn"),
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
}

// client returns a daemon client without checking that the daemon answers.
func (c *commandContext) client() (*daemonctl.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return daemonctl.NewClient(c.apiBind(cfg), cfg.Server.APIToken)
}

// dialDaemon returns a client only when a daemon responds.
func (c *commandContext) dialDaemon(ctx context.Context) (*daemonctl.Client, error) {
	client, err := c.client()
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, daemonPingTimeout); err != nil {
		return nil, err
	}
	return client, nil
}

// requireDaemon is dialDaemon with a hint for the operator.
func (c *commandContext) requireDaemon(ctx context.Context) (*daemonctl.Client, error) {
	client, err := c.dialDaemon(ctx)
	if err != nil {
		return nil, wrapDialError(err, c.apiBindOrEmpty())
	}
	return client, nil
}

func (c *commandContext) apiBindOrEmpty() string {
	cfg, err := c.ensureConfig()
	if err != nil {
		return ""
	}
	return c.apiBind(cfg)
}

// withQueue runs fn against the daemon API when it answers, and against the
// queue database otherwise.
func (c *commandContext) withQueue(cmd *cobra.Command, fn func(queueaccess.Session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	session, err := queueaccess.Open(cmd.Context(), queueaccess.Backends{
		Dial:      c.dialDaemon,
		OpenStore: func() (*queue.Store, error) { return queue.Open(cfg) },
	})
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session)
}

func wrapDialError(err error, bind string) error {
	if errors.Is(err, daemonctl.ErrUnavailable) {
		return fmt.Errorf("connect to daemon: nothing answered on %s; start it with `reframe serve`", bind)
	}
	return fmt.Errorf("connect to daemon: %w", err)
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
