//go:build tools

package spf

// Build-time tooling kept on the module so `go mod tidy` retains it.
import (
	_ "github.com/tailscale/depaware/depaware"
	_ "honnef.co/go/tools/cmd/staticcheck"
	_ "mvdan.cc/gofumpt"
)
