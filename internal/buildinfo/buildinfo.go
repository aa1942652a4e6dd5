// Package buildinfo carries version information stamped at build time.
package buildinfo

// Version is overridden via -ldflags "-X .../buildinfo.Version=1.2.3".
var Version = "dev"
