// Package file provides file-based persistence for pipelines and project variables.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/polymicro/manager/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
//
// Layout:
//
//	<root>/pipelines/<id>.json
//	<root>/projects/<project id>/variables.json
type Persistence struct {
	root         string
	pipelineRepo *PipelineRepository
	variableRepo *VariableRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		pipelineRepo: NewPipelineRepository(cleanRoot),
		variableRepo: NewVariableRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) PipelineRepository() persistence.PipelineRepository {
	return fp.pipelineRepo
}

func (fp *Persistence) VariableRepository() persistence.VariableRepository {
	return fp.variableRepo
}

// writeFile replaces path atomically so readers never observe a partial document.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}

	return os.Rename(tmp.Name(), path)
}
