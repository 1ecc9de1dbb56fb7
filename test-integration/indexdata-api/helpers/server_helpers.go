// Package helpers provides the server and repository fixtures of the integration suite.
package helpers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/onsi/gomega"

	indexapp "github.com/emory-libraries/fedora-indexdata/internal/app"
	"github.com/emory-libraries/fedora-indexdata/internal/config"
)

// ServerTestHelper manages the index data API server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	cancel     context.CancelFunc
	configPath string
	baseURL    string
	address    string
	httpClient *http.Client
	done       chan error
}

// NewServerTestHelper creates a helper for a server listening on a free local port
func NewServerTestHelper(ctx context.Context, configPath string) *ServerTestHelper {
	address := freeAddress()
	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		address:    address,
		baseURL:    "http://" + address,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// StartServer builds the application from the config file and runs it in the background
func (s *ServerTestHelper) StartServer() error {
	settings, err := config.NewManager(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := indexapp.NewIndexDataApp(s.ctx,
		indexapp.WithConfigManager(settings),
		indexapp.WithAddress(s.address),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}

	runCtx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() { s.done <- app.Run(runCtx) }()

	return nil
}

// StopServer cancels the server and waits for Run to return
func (s *ServerTestHelper) StopServer() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	select {
	case err := <-s.done:
		return err
	case <-time.After(10 * time.Second):
		return errors.New("server did not stop within 10s")
	}
}

// WaitForServerReady waits for the server to accept requests
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/health")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// Get makes a GET request to path on the server
func (s *ServerTestHelper) Get(path string) (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + path)
}

// GetBaseURL returns the base URL of the server
func (s *ServerTestHelper) GetBaseURL() string {
	return s.baseURL
}

// ConfigOptions holds the settings written by WriteConfigYAML
type ConfigOptions struct {
	SolrURL          string
	AllowedIPs       []string
	AllowAny         bool
	ProtectIndexData bool
	FedoraURL        string
	ObjectTypes      []config.ObjectTypeConfig
}

// WriteConfigYAML writes a YAML configuration file into dir and returns its path.
// Writing to the same dir again replaces the file in place.
func WriteConfigYAML(dir string, opts ConfigOptions) string {
	var b strings.Builder

	if opts.SolrURL != "" {
		fmt.Fprintf(&b, "solrUrl: %s\n", opts.SolrURL)
	}
	switch {
	case opts.AllowAny:
		b.WriteString("allowedIps: ANY\n")
	case len(opts.AllowedIPs) > 0:
		b.WriteString("allowedIps:\n")
		for _, ip := range opts.AllowedIPs {
			fmt.Fprintf(&b, "  - %q\n", ip)
		}
	}
	fmt.Fprintf(&b, "protectIndexData: %t\n", opts.ProtectIndexData)
	fmt.Fprintf(&b, "fedora:\n  baseUrl: %s\n  timeout: 5s\n", opts.FedoraURL)

	if len(opts.ObjectTypes) > 0 {
		b.WriteString("objectTypes:\n")
		for _, ot := range opts.ObjectTypes {
			fmt.Fprintf(&b, "  - name: %s\n", ot.Name)
			if len(ot.ContentModels) > 0 {
				b.WriteString("    contentModels:\n")
				for _, m := range ot.ContentModels {
					fmt.Fprintf(&b, "      - %s\n", m)
				}
			}
		}
	}

	path := filepath.Join(dir, "config.yaml")
	gomega.Expect(os.WriteFile(path, []byte(b.String()), 0600)).To(gomega.Succeed())
	return path
}

func freeAddress() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() { _ = l.Close() }()
	return l.Addr().String()
}
