// Package version reports the build of a stagekit binary.
//
// Version, commit and build time can be stamped at link time:
//
//	go build -ldflags "-X github.com/kbukum/stagekit/version.Version=1.0.0" ./cmd/stagedigest
//
// Anything left unstamped falls back to the VCS data the Go toolchain embeds.
package version
