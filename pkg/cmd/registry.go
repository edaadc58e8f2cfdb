// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/ccrm/agentgraph/pkg/registry"
	"github.com/ccrm/agentgraph/pkg/tools/httprequest"
	logtool "github.com/ccrm/agentgraph/pkg/tools/log"
)

func registerNativeTools(reg *registry.Registry) {
	reg.RegisterTool(httprequest.NewFactory())
	reg.RegisterTool(logtool.NewFactory())
}

// NewRegistry creates the tool registry with all native tools registered.
func NewRegistry(log *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(log)

	registerNativeTools(reg)

	return reg
}
