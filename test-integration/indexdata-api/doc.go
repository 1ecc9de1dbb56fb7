// Package integration provides integration tests for the index data API server.
// These tests run the complete server against a fake Fedora repository and
// exercise discovery, object retrieval and configuration reloads over HTTP.
package integration
