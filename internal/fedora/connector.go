package fedora

import (
	"context"
	"fmt"
	"net/http"

	"github.com/emory-libraries/fedora-indexdata/internal/config"
)

// ConfigSource provides the configuration currently in effect
type ConfigSource interface {
	GetConfig() *config.Config
}

type configConnector struct {
	source     ConfigSource
	httpClient *http.Client
}

// NewConnector returns a Connector that builds a new Client from the fedora
// settings on every Connect, so reloaded credentials apply to the next
// request. Connections share httpClient and its transport.
func NewConnector(source ConfigSource, httpClient *http.Client) Connector {
	return &configConnector{source: source, httpClient: httpClient}
}

func (c *configConnector) Connect(_ context.Context) (Client, error) {
	cfg := c.source.GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("fedora: %w", config.ErrConfigurationMissing)
	}

	password, err := cfg.Fedora.GetPassword()
	if err != nil {
		return nil, err
	}

	return NewClient(cfg.Fedora.BaseURL,
		WithCredentials(cfg.Fedora.Username, password),
		WithTimeout(cfg.Fedora.GetTimeout()),
		WithHTTPClient(c.httpClient),
	)
}
