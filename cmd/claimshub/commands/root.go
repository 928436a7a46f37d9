// Package commands provides CLI command implementations.
package commands

import (
	"context"
	"fmt"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/app"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/config"
)

// configPath is shared by every command family here. Only one command
// runs per invocation.
var configPath string

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openHub(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
