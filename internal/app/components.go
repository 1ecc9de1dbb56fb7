package app

import (
	"github.com/emory-libraries/fedora-indexdata/internal/access"
	"github.com/emory-libraries/fedora-indexdata/internal/contentmodel"
	"github.com/emory-libraries/fedora-indexdata/internal/indexdata"
	"github.com/emory-libraries/fedora-indexdata/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Registry holds the object types known to the server
	Registry *contentmodel.Registry

	// Service provides discovery and index data retrieval
	Service indexdata.Service

	// Guard evaluates the allow-list for each request
	Guard access.Guard

	// Metrics records discovery and retrieval outcomes
	Metrics *telemetry.IndexMetrics

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry
}
