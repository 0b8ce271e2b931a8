// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/polymicro/manager/pkg/registry"
)

// NewRegistry loads the block catalog from catalogPath, or the built-in
// catalog when the path is empty.
func NewRegistry(log *slog.Logger, catalogPath string) (*registry.Registry, error) {
	reg := registry.Default()

	if catalogPath != "" {
		loaded, err := registry.LoadFile(catalogPath)
		if err != nil {
			return nil, err
		}

		reg = loaded
	}

	reg.LogSummary(log.With("module", "registry"))

	return reg, nil
}
