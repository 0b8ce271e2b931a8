package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/registry"
	"github.com/polymicro/manager/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePipeline(t *testing.T, p *models.Pipeline) string {
	t.Helper()

	data, err := json.Marshal(p)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "pipeline.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer

	command := NewCommand()
	command.Writer = &out
	command.ErrWriter = &errOut

	err := command.Run(context.Background(), append([]string{"polymicro"}, args...))

	return out.String(), err
}

func TestCatalogCommand(t *testing.T) {
	out, err := run(t, "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "webhook")
	assert.Contains(t, out, "deploy")

	out, err = run(t, "catalog", "--category", "triggers", "--json")
	require.NoError(t, err)

	var definitions []models.BlockDefinition
	require.NoError(t, json.Unmarshal([]byte(out), &definitions))
	require.NotEmpty(t, definitions)

	for _, def := range definitions {
		assert.Equal(t, models.CategoryTriggers, def.Category)
	}

	_, err = run(t, "catalog", "--category", "robots")
	require.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	clean := writePipeline(t, testutil.CreateTestPipeline())

	out, err := run(t, "validate", clean)
	require.NoError(t, err)
	assert.Contains(t, out, ": ok")

	unresolved := testutil.CreateTestPipeline(
		testutil.WithBlock(testutil.CreateTestBlock(registry.BlockDeploy,
			testutil.WithID("deploy"),
			testutil.WithConfig(models.Config{"target": models.StringValue("${API_URL}")}),
		)),
	)
	unresolved.Connections = append(unresolved.Connections, &models.Connection{
		ID: "test-deploy", Source: "test", SourcePort: models.PortSuccess, Target: "deploy", Type: models.ConnectionSuccess,
	})
	path := writePipeline(t, unresolved)

	out, err = run(t, "validate", path)
	require.ErrorIs(t, err, ErrLintFailed)
	assert.Contains(t, out, `block "deploy": unresolved variables: API_URL`)

	_, err = run(t, "validate", "--var", "API_URL=https://api", path)
	require.NoError(t, err)

	_, err = run(t, "validate", "--var", "broken", path)
	require.Error(t, err)

	_, err = run(t, "validate")
	require.ErrorIs(t, err, ErrMissingArgument)
}

func TestRenderCommand(t *testing.T) {
	path := writePipeline(t, testutil.CreateTestPipeline())

	out, err := run(t, "render", path)
	require.NoError(t, err)
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, "hook")

	out, err = run(t, "render", "--format", "text", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Pipeline: Test Pipeline")

	_, err = run(t, "render", "--format", "svg", path)
	require.Error(t, err)
}
