// Package access decides which callers may use the index data endpoints.
//
// The allow-list is read from the active configuration on every check, so a
// reloaded configuration takes effect on the next request.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	cedar "github.com/cedar-policy/cedar-go"

	"github.com/emory-libraries/fedora-indexdata/internal/config"
)

//go:generate mockgen -destination=mocks/mock_guard.go -package=mocks -source=guard.go Guard

// DeniedMessage is the body returned to callers outside the allow-list
const DeniedMessage = "Access to this web service was denied."

const cedarNamespace = "IndexData"

// anyAddressPolicy permits every caller.
const anyAddressPolicy = `permit (principal, action, resource);`

// listedAddressPolicy permits callers whose address is in the configured set.
const listedAddressPolicy = `permit (principal, action, resource)
when { context.allowed.contains(context.remoteAddress) };`

// Guard evaluates the allow-list policy against a caller address.
type Guard interface {
	// IsDenied reports whether remoteAddr is refused. It returns an error
	// wrapping config.ErrConfigurationMissing when no policy is configured.
	IsDenied(ctx context.Context, remoteAddr string) (bool, error)
}

// ConfigSource provides the configuration currently in effect.
// config.Manager satisfies it.
type ConfigSource interface {
	GetConfig() *config.Config
}

type cedarGuard struct {
	source    ConfigSource
	anyPolicy *cedar.PolicySet
	listed    *cedar.PolicySet
}

// NewGuard creates a Cedar-backed guard reading its policy from source.
func NewGuard(source ConfigSource) (Guard, error) {
	if source == nil {
		return nil, fmt.Errorf("config source is required")
	}

	anyPolicy, err := cedar.NewPolicySetFromBytes("any.cedar", []byte(anyAddressPolicy))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Cedar policies: %w", err)
	}
	listed, err := cedar.NewPolicySetFromBytes("allowed.cedar", []byte(listedAddressPolicy))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Cedar policies: %w", err)
	}

	return &cedarGuard{source: source, anyPolicy: anyPolicy, listed: listed}, nil
}

func (g *cedarGuard) IsDenied(ctx context.Context, remoteAddr string) (bool, error) {
	allowList, err := g.source.GetConfig().GetAllowList()
	if err != nil {
		return false, err
	}

	addr := HostOnly(remoteAddr)

	policySet := g.listed
	if allowList.Any {
		policySet = g.anyPolicy
	}

	allowed := make([]cedar.Value, len(allowList.Addresses))
	for i, a := range allowList.Addresses {
		allowed[i] = cedar.String(a)
	}

	req := cedar.Request{
		Principal: cedar.NewEntityUID(cedar.EntityType(cedarNamespace+"::Client"), cedar.String(addr)),
		Action:    cedar.NewEntityUID(cedar.EntityType(cedarNamespace+"::Action"), cedar.String("read")),
		Resource:  cedar.NewEntityUID(cedar.EntityType(cedarNamespace+"::Service"), cedar.String("indexdata")),
		Context: cedar.NewRecord(cedar.RecordMap{
			"remoteAddress": cedar.String(addr),
			"allowed":       cedar.NewSet(allowed...),
		}),
	}

	decision, diagnostic := cedar.Authorize(policySet, cedar.EntityMap{}, req)
	for _, e := range diagnostic.Errors {
		slog.ErrorContext(ctx, "Allow-list policy evaluation error", "policy", e.PolicyID, "error", e.Message)
	}

	denied := decision != cedar.Allow
	slog.DebugContext(ctx, "Allow-list decision",
		"remote_address", addr,
		"any", allowList.Any,
		"denied", denied,
	)
	return denied, nil
}

// HostOnly strips the port from a "host:port" address. Addresses without a
// port are returned unchanged.
func HostOnly(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
