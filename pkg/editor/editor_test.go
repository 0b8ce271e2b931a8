package editor

import (
	"fmt"
	"testing"

	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEditor(t *testing.T) *Editor {
	t.Helper()

	seq := 0

	return New(registry.Default(), Options{
		Now: fixedNow,
		NewID: func() string {
			seq++

			return fmt.Sprintf("conn-%d", seq)
		},
	})
}

func addBlock(t *testing.T, e *Editor, blockType string, x, y float64) *models.BlockInstance {
	t.Helper()

	b, err := e.AddBlock(blockType, models.Position{X: x, Y: y})
	require.NoError(t, err)

	return b
}

func connect(e *Editor, source *models.BlockInstance, port string, target *models.BlockInstance) (*models.Connection, error) {
	return e.Connect(ConnectRequest{Source: source.ID, SourcePort: port, Target: target.ID})
}

func TestScenario_BuildThenTest(t *testing.T) {
	e := newTestEditor(t)

	build := addBlock(t, e, registry.BlockBuild, 12, 12)
	assert.Equal(t, models.Position{X: 0, Y: 0}, build.Position)

	test := addBlock(t, e, registry.BlockTest, 45, 45)
	assert.Equal(t, models.Position{X: 40, Y: 40}, test.Position)

	c, err := connect(e, build, models.PortSuccess, test)
	require.NoError(t, err)

	conns := e.Connections().Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, models.ConnectionSuccess, conns[0].Type)
	assert.Equal(t, c.ID, conns[0].ID)
	assert.Equal(t, build.ID, conns[0].Source)
	assert.Equal(t, test.ID, conns[0].Target)
}

func TestScenario_DeployCannotPrecedeBuild(t *testing.T) {
	e := newTestEditor(t)

	deploy := addBlock(t, e, registry.BlockDeploy, 0, 0)
	build := addBlock(t, e, registry.BlockBuild, 80, 0)

	_, err := connect(e, deploy, models.PortSuccess, build)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConnection)
	assert.Equal(t, "Invalid connection: Deploy cannot precede Build", err.Error())

	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, RuleStageOrder, rejection.Rule)

	assert.Equal(t, 0, e.Connections().Len())
}

func TestScenario_DeleteCascades(t *testing.T) {
	e := newTestEditor(t)

	build := addBlock(t, e, registry.BlockBuild, 0, 0)
	test := addBlock(t, e, registry.BlockTest, 40, 0)

	_, err := connect(e, build, models.PortSuccess, test)
	require.NoError(t, err)

	assert.Equal(t, 1, e.DeleteBlock(build.ID))
	assert.Equal(t, 0, e.Connections().Len())

	_, ok := e.Blocks().Get(test.ID)
	assert.True(t, ok)
	assert.Equal(t, 1, e.Blocks().Len())

	assert.Equal(t, 0, e.DeleteBlock("missing"))
}

func TestEditor_AddBlockUnknownType(t *testing.T) {
	e := newTestEditor(t)

	_, err := e.AddBlock("kubernetes", models.Position{})
	assert.ErrorIs(t, err, registry.ErrUnknownBlockType)
	assert.Equal(t, 0, e.Blocks().Len())
}

func TestEditor_UpdateConfig(t *testing.T) {
	e := newTestEditor(t)
	deploy := addBlock(t, e, registry.BlockDeploy, 0, 0)

	err := e.UpdateConfig(deploy.ID, models.Config{"environment": models.StringValue("moon")})
	require.ErrorIs(t, err, registry.ErrInvalidConfig)
	assert.Same(t, deploy, e.Selected(), "rejected config keeps the prompt open")

	err = e.UpdateConfig(deploy.ID, models.Config{
		"environment": models.StringValue("production"),
		"replicas":    models.NumberValue(3),
	})
	require.NoError(t, err)

	env, _ := deploy.Config["environment"].AsString()
	assert.Equal(t, "production", env)
	assert.Nil(t, e.Selected())
	assert.False(t, e.PromptOpen())

	assert.NoError(t, e.UpdateConfig("missing", models.Config{}))
}

func TestValidator_Rules(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, e *Editor) (source *models.BlockInstance, port string, target *models.BlockInstance)
		rule   string
		accept models.ConnectionType
	}{
		{
			name: "trigger to build",
			setup: func(t *testing.T, e *Editor) (*models.BlockInstance, string, *models.BlockInstance) {
				return addBlock(t, e, registry.BlockWebhook, 0, 0), models.PortSuccess, addBlock(t, e, registry.BlockBuild, 40, 0)
			},
			accept: models.ConnectionSuccess,
		},
		{
			name: "failure path to notify",
			setup: func(t *testing.T, e *Editor) (*models.BlockInstance, string, *models.BlockInstance) {
				return addBlock(t, e, registry.BlockBuild, 0, 0), models.PortFailure, addBlock(t, e, registry.BlockNotify, 40, 0)
			},
			accept: models.ConnectionFailure,
		},
		{
			name: "condition true branch",
			setup: func(t *testing.T, e *Editor) (*models.BlockInstance, string, *models.BlockInstance) {
				return addBlock(t, e, registry.BlockCondition, 0, 0), models.PortTrue, addBlock(t, e, registry.BlockDeploy, 40, 0)
			},
			accept: models.ConnectionTruePath,
		},
		{
			name: "condition false branch",
			setup: func(t *testing.T, e *Editor) (*models.BlockInstance, string, *models.BlockInstance) {
				return addBlock(t, e, registry.BlockCondition, 0, 0), models.PortFalse, addBlock(t, e, registry.BlockNotify, 40, 0)
			},
			accept: models.ConnectionFalsePath,
		},
		{
			name: "self connection",
			setup: func(t *testing.T, e *Editor) (*models.BlockInstance, string, *models.BlockInstance) {
				b := addBlock(t, e, registry.BlockScript, 0, 0)

				return b, models.PortLoop, b
			},
			rule: RuleSelfConnection,
		},
		{
			name: "condition has no success port",
			setup: func(t *testing.T, e *Editor) (*models.BlockInstance, string, *models.BlockInstance) {
				return addBlock(t, e, registry.BlockCondition, 0, 0), models.PortSuccess, addBlock(t, e, registry.BlockBuild, 40, 0)
			},
			rule: RuleInvalidPort,
		},
		{
			name: "regular block has no true port",
			setup: func(t *testing.T, e *Editor) (*models.BlockInstance, string, *models.BlockInstance) {
				return addBlock(t, e, registry.BlockBuild, 0, 0), models.PortTrue, addBlock(t, e, registry.BlockTest, 40, 0)
			},
			rule: RuleInvalidPort,
		},
		{
			name: "unknown port",
			setup: func(t *testing.T, e *Editor) (*models.BlockInstance, string, *models.BlockInstance) {
				return addBlock(t, e, registry.BlockBuild, 0, 0), "sideways", addBlock(t, e, registry.BlockTest, 40, 0)
			},
			rule: RuleInvalidPort,
		},
		{
			name: "nothing connects into a trigger",
			setup: func(t *testing.T, e *Editor) (*models.BlockInstance, string, *models.BlockInstance) {
				return addBlock(t, e, registry.BlockBuild, 0, 0), models.PortSuccess, addBlock(t, e, registry.BlockSchedule, 40, 0)
			},
			rule: RuleTriggerInput,
		},
		{
			name: "automation cannot precede execution",
			setup: func(t *testing.T, e *Editor) (*models.BlockInstance, string, *models.BlockInstance) {
				return addBlock(t, e, registry.BlockNotify, 0, 0), models.PortSuccess, addBlock(t, e, registry.BlockScript, 40, 0)
			},
			rule: RuleCategoryOrder,
		},
		{
			name: "test cannot precede build",
			setup: func(t *testing.T, e *Editor) (*models.BlockInstance, string, *models.BlockInstance) {
				return addBlock(t, e, registry.BlockTest, 0, 0), models.PortFailure, addBlock(t, e, registry.BlockBuild, 40, 0)
			},
			rule: RuleStageOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEditor(t)
			source, port, target := tt.setup(t, e)

			c, err := e.Connect(ConnectRequest{Source: source.ID, SourcePort: port, Target: target.ID})

			if tt.rule == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.accept, c.Type)
				assert.Equal(t, port, c.SourcePort)

				return
			}

			require.Error(t, err)

			var rejection *RejectionError
			require.ErrorAs(t, err, &rejection)
			assert.Equal(t, tt.rule, rejection.Rule)
			assert.Contains(t, rejection.Reason, "Invalid connection: ")
			assert.Equal(t, 0, e.Connections().Len())
		})
	}
}

func TestValidator_ReasonNamesBothBlocks(t *testing.T) {
	e := newTestEditor(t)
	notify := addBlock(t, e, registry.BlockNotify, 0, 0)
	build := addBlock(t, e, registry.BlockBuild, 40, 0)

	_, err := connect(e, notify, models.PortSuccess, build)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Notify")
	assert.Contains(t, err.Error(), "Build")
}

func TestValidator_DuplicateAndBranchTaken(t *testing.T) {
	e := newTestEditor(t)
	build := addBlock(t, e, registry.BlockBuild, 0, 0)
	test := addBlock(t, e, registry.BlockTest, 40, 0)
	cond := addBlock(t, e, registry.BlockCondition, 80, 0)
	deploy := addBlock(t, e, registry.BlockDeploy, 120, 0)

	_, err := connect(e, build, models.PortSuccess, test)
	require.NoError(t, err)

	_, err = connect(e, build, models.PortSuccess, test)
	assertRejected(t, err, RuleDuplicate)

	// a different port between the same blocks is a distinct connection
	_, err = connect(e, build, models.PortFailure, test)
	require.NoError(t, err)

	_, err = connect(e, cond, models.PortTrue, deploy)
	require.NoError(t, err)

	_, err = connect(e, cond, models.PortTrue, test)
	assertRejected(t, err, RuleBranchTaken)

	assert.Equal(t, 3, e.Connections().Len())
}

func TestValidator_CyclesAndLoops(t *testing.T) {
	e := newTestEditor(t)
	first := addBlock(t, e, registry.BlockScript, 0, 0)
	second := addBlock(t, e, registry.BlockScript, 40, 0)
	third := addBlock(t, e, registry.BlockScript, 80, 0)

	_, err := connect(e, first, models.PortSuccess, second)
	require.NoError(t, err)
	_, err = connect(e, second, models.PortSuccess, third)
	require.NoError(t, err)

	_, err = connect(e, third, models.PortSuccess, first)
	assertRejected(t, err, RuleCycle)

	_, err = connect(e, first, models.PortLoop, third)
	assertRejected(t, err, RuleLoopNotUpstream)

	loop, err := connect(e, third, models.PortLoop, first)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionLoop, loop.Type)

	// loop edges are ignored when looking for cycles
	_, err = connect(e, first, models.PortFailure, third)
	require.NoError(t, err)
}

func TestValidator_UnknownBlock(t *testing.T) {
	e := newTestEditor(t)
	build := addBlock(t, e, registry.BlockBuild, 0, 0)

	_, err := e.Connect(ConnectRequest{Source: build.ID, SourcePort: models.PortSuccess, Target: "ghost"})
	assertRejected(t, err, RuleUnknownBlock)
}

func TestEditor_ConnectWithPortID(t *testing.T) {
	e := newTestEditor(t)
	build := addBlock(t, e, registry.BlockBuild, 0, 0)
	deploy := addBlock(t, e, registry.BlockDeploy, 80, 0)

	connType, err := e.CanConnect(ConnectRequest{Source: models.MakePortID(build.ID, models.PortFailure), Target: deploy.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionFailure, connType)

	c, err := e.Connect(ConnectRequest{Source: build.ID + ":success", Target: deploy.ID})
	require.NoError(t, err)
	assert.Equal(t, build.ID, c.Source)
	assert.Equal(t, models.PortSuccess, c.SourcePort)
	assert.Equal(t, models.ConnectionSuccess, c.Type)

	// an explicit port wins over a suffix in Source
	req := ConnectRequest{Source: "a:b", SourcePort: models.PortLoop, Target: "c"}.Normalize()
	assert.Equal(t, "a:b", req.Source)
	assert.Equal(t, models.PortLoop, req.SourcePort)

	req = ConnectRequest{Source: build.ID, Target: deploy.ID}.Normalize()
	assert.Empty(t, req.SourcePort)
}

func TestValidator_CustomRules(t *testing.T) {
	rules := Rules{
		Successors: map[models.Category][]models.Category{
			models.CategoryExecution: {models.CategoryExecution},
		},
	}

	e := New(registry.Default(), Options{Rules: &rules, Now: fixedNow})
	deploy := addBlock(t, e, registry.BlockDeploy, 0, 0)
	build := addBlock(t, e, registry.BlockBuild, 40, 0)
	notify := addBlock(t, e, registry.BlockNotify, 80, 0)

	_, err := connect(e, deploy, models.PortSuccess, build)
	require.NoError(t, err, "no stage order configured")

	_, err = connect(e, build, models.PortSuccess, notify)
	assertRejected(t, err, RuleCategoryOrder)

	assert.Equal(t, []string{models.PortSuccess, models.PortFailure, models.PortLoop}, e.Validator().Ports(build))
}

func TestValidator_DoesNotMutateExisting(t *testing.T) {
	v := NewValidator(DefaultRules())
	build := &models.BlockInstance{ID: "b", Type: "build", Name: "Build", Category: models.CategoryExecution}
	test := &models.BlockInstance{ID: "t", Type: "test", Name: "Test", Category: models.CategoryExecution}

	existing := []*models.Connection{{ID: "1", Source: "b", SourcePort: models.PortSuccess, Target: "t", Type: models.ConnectionSuccess}}
	snapshot := *existing[0]

	_, err := v.Validate(test, models.PortSuccess, build, existing)
	require.Error(t, err)
	assert.Len(t, existing, 1)
	assert.Equal(t, snapshot, *existing[0])
}

func TestEditor_Disconnect(t *testing.T) {
	e := newTestEditor(t)
	build := addBlock(t, e, registry.BlockBuild, 0, 0)
	test := addBlock(t, e, registry.BlockTest, 40, 0)

	c, err := connect(e, build, models.PortSuccess, test)
	require.NoError(t, err)

	assert.True(t, e.Disconnect(c.ID))
	assert.False(t, e.Disconnect(c.ID))
	assert.Equal(t, 0, e.Connections().Len())
}

func TestEditor_OpenAndSnapshot(t *testing.T) {
	stored := &models.Pipeline{
		ID:        "p-1",
		ProjectID: "proj-1",
		Name:      "Release",
		Blocks: []*models.BlockInstance{
			{ID: "build-1", Type: registry.BlockBuild, Name: "Build", Category: models.CategoryExecution},
			{ID: "test-1", Type: registry.BlockTest, Name: "Test", Category: models.CategoryExecution},
		},
		Connections: []*models.Connection{
			{ID: "c1", Source: "build-1", SourcePort: models.PortSuccess, Target: "test-1", Type: models.ConnectionSuccess},
			{ID: "c2", Source: "build-1", SourcePort: models.PortFailure, Target: "gone", Type: models.ConnectionFailure},
		},
		Variables: []models.PipelineVariable{{Name: "A", Value: "1", Scope: models.ScopeLocal}},
	}

	e := Open(registry.Default(), stored, Options{Now: fixedNow})
	assert.Equal(t, 1, e.Connections().Len(), "dangling connection dropped")

	e.Rename("Release v2", "ships it")
	e.DeleteBlock("test-1")

	snapshot := e.Pipeline()
	assert.Equal(t, "p-1", snapshot.ID)
	assert.Equal(t, "proj-1", snapshot.ProjectID)
	assert.Equal(t, "Release v2", snapshot.Name)
	assert.Equal(t, "ships it", snapshot.Description)
	assert.Len(t, snapshot.Blocks, 1)
	assert.Empty(t, snapshot.Connections)
	assert.Equal(t, stored.Variables, snapshot.Variables)

	// the stored document is untouched
	assert.Len(t, stored.Blocks, 2)
	assert.Len(t, stored.Connections, 2)

	snapshot.Blocks[0].Name = "mutated"
	b, _ := e.Blocks().Get("build-1")
	assert.Equal(t, "Build", b.Name)
}

func assertRejected(t *testing.T, err error, rule string) {
	t.Helper()

	require.Error(t, err)

	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, rule, rejection.Rule)
}

func TestEditor_EmptyVariableValueSurvivesReopen(t *testing.T) {
	e := newTestEditor(t)
	require.True(t, e.Variables().AddVariable(&models.PipelineVariable{Name: "A", Value: "x"}))
	require.True(t, e.Variables().AddVariable(&models.PipelineVariable{Name: "B", Value: "y"}))
	require.True(t, e.Variables().UpdateVariable(0, FieldValue, ""))

	saved := e.Pipeline()
	reopened := Open(registry.Default(), saved, Options{Now: fixedNow})

	assert.Equal(t, saved.Variables, reopened.Variables().Variables())

	// indexes still address the same variables after the reload
	require.True(t, reopened.Variables().UpdateVariable(1, FieldValue, "z"))
	assert.Equal(t, []models.PipelineVariable{
		{Name: "A", Value: "", Scope: models.ScopeLocal},
		{Name: "B", Value: "z", Scope: models.ScopeLocal},
	}, reopened.Variables().Variables())
}
