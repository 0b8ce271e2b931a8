package registry

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/polymicro/manager/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Catalog(t *testing.T) {
	r := Default()

	assert.Equal(t, len(DefaultDefinitions()), r.Len())

	build, ok := r.Lookup(BlockBuild)
	require.True(t, ok)
	assert.Equal(t, "Build", build.Name)
	assert.Equal(t, models.CategoryExecution, build.Category)

	condition, ok := r.Lookup(BlockCondition)
	require.True(t, ok)
	assert.Equal(t, models.CategoryFlow, condition.Category)

	_, ok = r.Lookup("kubernetes")
	assert.False(t, ok)

	triggers := r.ByCategory(models.CategoryTriggers)
	require.Len(t, triggers, 3)
	assert.Equal(t, BlockWebhook, triggers[0].ID)

	msg, healthy := r.HealthCheck()
	assert.True(t, healthy)
	assert.Contains(t, msg, "definitions")

	// every built-in default must satisfy its own schema, except required fields left blank
	for _, def := range r.Definitions() {
		err := r.ValidateConfig(def.ID, def.DefaultConfig())
		if err == nil {
			continue
		}

		var configErr *ConfigError
		require.ErrorAs(t, err, &configErr, def.ID)

		for _, f := range configErr.Fields {
			field, ok := def.Field(f.Field)
			require.True(t, ok, "%s: %s", def.ID, f.Field)
			assert.True(t, field.Required, "%s: %s", def.ID, f.Field)
			assert.True(t, field.Default.IsZero(), "%s: %s", def.ID, f.Field)
		}
	}

	r.LogSummary(slog.Default())
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	r := Default()

	def, _ := r.Lookup(BlockDeploy)
	def.Schema[0].Choices[0] = "mutated"

	again, _ := r.Lookup(BlockDeploy)
	assert.Equal(t, "development", again.Schema[0].Choices[0])
}

func TestNew_Errors(t *testing.T) {
	valid := models.BlockDefinition{ID: "build", Name: "Build", Category: models.CategoryExecution}

	tests := []struct {
		name        string
		definitions []models.BlockDefinition
		want        error
	}{
		{
			name:        "duplicate id",
			definitions: []models.BlockDefinition{valid, valid},
			want:        ErrDuplicateBlockType,
		},
		{
			name:        "unknown category",
			definitions: []models.BlockDefinition{{ID: "x", Name: "X", Category: "misc"}},
			want:        ErrInvalidDefinition,
		},
		{
			name: "select without choices",
			definitions: []models.BlockDefinition{{
				ID: "x", Name: "X", Category: models.CategoryFlow,
				Schema: []models.FieldDescriptor{{Name: "mode", Type: models.FieldTypeSelect}},
			}},
			want: ErrInvalidDefinition,
		},
		{
			name: "default of wrong kind",
			definitions: []models.BlockDefinition{{
				ID: "x", Name: "X", Category: models.CategoryFlow,
				Schema: []models.FieldDescriptor{{Name: "n", Type: models.FieldTypeNumber, Default: models.StringValue("1")}},
			}},
			want: ErrInvalidDefinition,
		},
		{
			name: "duplicate field",
			definitions: []models.BlockDefinition{{
				ID: "x", Name: "X", Category: models.CategoryFlow,
				Schema: []models.FieldDescriptor{
					{Name: "a", Type: models.FieldTypeString},
					{Name: "a", Type: models.FieldTypeString},
				},
			}},
			want: ErrInvalidDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.definitions...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateConfig(t *testing.T) {
	r := Default()

	tests := []struct {
		name      string
		blockType string
		config    models.Config
		fields    []string
	}{
		{
			name:      "defaults are valid",
			blockType: BlockBuild,
			config:    models.Config{"command": models.StringValue("go build ./...")},
		},
		{
			name:      "placeholders are plain strings",
			blockType: BlockDeploy,
			config: models.Config{
				"environment": models.StringValue("production"),
				"target":      models.StringValue("${API_URL}/deploy"),
			},
		},
		{
			name:      "missing required field",
			blockType: BlockBuild,
			config:    models.Config{"timeout": models.NumberValue(30)},
			fields:    []string{"command"},
		},
		{
			name:      "empty required string",
			blockType: BlockBuild,
			config:    models.Config{"command": models.StringValue("")},
			fields:    []string{"command"},
		},
		{
			name:      "number out of bounds",
			blockType: BlockTest,
			config: models.Config{
				"command":     models.StringValue("make test"),
				"parallelism": models.NumberValue(64),
			},
			fields: []string{"parallelism"},
		},
		{
			name:      "choice not allowed",
			blockType: BlockDeploy,
			config:    models.Config{"environment": models.StringValue("moon")},
			fields:    []string{"environment"},
		},
		{
			name:      "wrong variant",
			blockType: BlockTest,
			config: models.Config{
				"command":  models.StringValue("make test"),
				"coverage": models.StringValue("yes"),
			},
			fields: []string{"coverage"},
		},
		{
			name:      "required list empty",
			blockType: BlockApproval,
			config:    models.Config{"approvers": models.ListValue()},
			fields:    []string{"approvers"},
		},
		{
			name:      "cron descriptor",
			blockType: BlockSchedule,
			config: models.Config{
				"cron":     models.StringValue("@hourly"),
				"timezone": models.StringValue("UTC"),
			},
		},
		{
			name:      "cron placeholder",
			blockType: BlockSchedule,
			config:    models.Config{"cron": models.StringValue("${NIGHTLY_CRON}")},
		},
		{
			name:      "malformed cron and timezone",
			blockType: BlockSchedule,
			config: models.Config{
				"cron":     models.StringValue("every day at noon"),
				"timezone": models.StringValue("Mars/Olympus_Mons"),
			},
			fields: []string{"cron", "timezone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateConfig(tt.blockType, tt.config)
			if len(tt.fields) == 0 {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var configErr *ConfigError
			require.ErrorAs(t, err, &configErr)

			got := make([]string, 0, len(configErr.Fields))
			for _, f := range configErr.Fields {
				got = append(got, f.Field)
			}

			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestValidateConfig_UnknownField(t *testing.T) {
	err := Default().ValidateConfig(BlockWait, models.Config{
		"seconds": models.NumberValue(5),
		"minutes": models.NumberValue(1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateConfig_UnknownType(t *testing.T) {
	err := Default().ValidateConfig("kubernetes", models.Config{})
	assert.True(t, errors.Is(err, ErrUnknownBlockType))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")

	data, err := json.Marshal([]models.BlockDefinition{
		{
			ID:       "lint",
			Name:     "Lint",
			Category: models.CategoryExecution,
			Schema: []models.FieldDescriptor{
				{Name: "linters", Type: models.FieldTypeList, Default: models.ListValue("govet", "staticcheck")},
			},
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	r, err := LoadFile(path)
	require.NoError(t, err)

	def, ok := r.Lookup("lint")
	require.True(t, ok)

	linters, ok := def.Schema[0].Default.AsList()
	require.True(t, ok)
	assert.Equal(t, []string{"govet", "staticcheck"}, linters)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")

	catalog := `
- id: nightly
  name: Nightly
  category: triggers
  schema:
    - name: cron
      type: string
      label: Cron expression
      format: cron
      default: "0 3 * * *"
      required: true
    - name: retries
      type: number
      default: 2
      min: 0
`
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o600))

	r, err := LoadFile(path)
	require.NoError(t, err)

	def, ok := r.Lookup("nightly")
	require.True(t, ok)
	assert.Equal(t, models.CategoryTriggers, def.Category)

	retries, ok := def.Schema[1].Default.AsNumber()
	require.True(t, ok)
	assert.InDelta(t, 2, retries, 0)

	err = r.ValidateConfig("nightly", models.Config{"cron": models.StringValue("not cron")})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	require.NoError(t, os.WriteFile(path, []byte("- id: [unclosed"), 0o600))

	_, err = LoadFile(path)
	assert.Error(t, err)
}
