package common

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/ounols/jekyll-news/internal/config"
)

// NewCommandApp decodes the configuration held by the global viper
// instance and wires the App from it.
func NewCommandApp(ctx context.Context) (*App, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return app, nil
}
