package main

import (
	"fmt"
	"strings"

	"recap/internal/config"
)

// commandContext resolves configuration and the daemon base URL lazily, so
// commands that never talk to the daemon do not require a running one.
type commandContext struct {
	serverFlag *string
	configFlag *string

	cfg     *config.Config
	cfgPath string
}

func newCommandContext(serverFlag, configFlag *string) *commandContext {
	return &commandContext{serverFlag: serverFlag, configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, resolvedPath, _, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.cfgPath = resolvedPath
	return cfg, nil
}

// baseURL returns the daemon's base URL: the --server flag when given,
// otherwise derived from the configured API bind address.
func (c *commandContext) baseURL() (string, error) {
	if c.serverFlag != nil {
		if server := strings.TrimSpace(*c.serverFlag); server != "" {
			return strings.TrimRight(server, "/"), nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return "", fmt.Errorf("no api_bind configured and no --server flag given")
	}
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}
	return "http://" + bind, nil
}
