package versions

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SupportedRepositoryVersions is the range of Fedora releases whose REST API
// the client speaks
const SupportedRepositoryVersions = ">= 3.0.0, < 4.0.0"

var supportedRepositories = mustConstraint(SupportedRepositoryVersions)

// CheckRepositoryVersion returns an error unless version is a Fedora release
// within SupportedRepositoryVersions. Pre-release builds of a supported
// release are accepted.
func CheckRepositoryVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("unrecognized repository version %q: %w", version, err)
	}

	// Constraints skip pre-releases unless they are stripped first
	release, err := v.SetPrerelease("")
	if err != nil {
		return fmt.Errorf("unrecognized repository version %q: %w", version, err)
	}

	if !supportedRepositories.Check(&release) {
		return fmt.Errorf("repository version %s is outside %s", version, SupportedRepositoryVersions)
	}
	return nil
}

func mustConstraint(c string) *semver.Constraints {
	constraints, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraints
}
