package ciutil

import (
	"os"
	"time"
)

// CI environment detection variables
const (
	EnvCI            = "CI"
	EnvGitHubActions = "GITHUB_ACTIONS"
	EnvGitLabCI      = "GITLAB_CI"
	EnvJenkinsURL    = "JENKINS_URL"
	EnvTravisCI      = "TRAVIS"
	EnvCircleCI      = "CIRCLECI"
)

// ciEnvVars lists the variables any of which marks a CI environment.
var ciEnvVars = []string{EnvCI, EnvGitHubActions, EnvGitLabCI, EnvJenkinsURL, EnvTravisCI, EnvCircleCI}

// ciGraceFactor widens timing tolerances on CI runners.
const ciGraceFactor = 3

// IsCI returns true if the current environment is a CI environment.
// It checks for common CI environment variables across different CI providers.
func IsCI() bool {
	for _, name := range ciEnvVars {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// Grace returns the tolerance a test should allow for work expected to take
// about base. Shared CI runners get a wider margin.
func Grace(base time.Duration) time.Duration {
	if IsCI() {
		return base * ciGraceFactor
	}
	return base
}
