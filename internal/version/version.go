// Package version exposes build metadata injected via -ldflags.
package version

// Version is overridden at build time:
//
//	go build -ldflags "-X github.com/sydlexius/tributary/internal/version.Version=v1.2.3"
var Version = "dev"

// Commit is the git revision the binary was built from.
var Commit = "unknown"
