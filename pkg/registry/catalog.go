package registry

import "github.com/polymicro/manager/pkg/models"

// Built-in block type IDs.
const (
	BlockWebhook   = "webhook"
	BlockSchedule  = "schedule"
	BlockGitPush   = "git-push"
	BlockBuild     = "build"
	BlockTest      = "test"
	BlockDeploy    = "deploy"
	BlockScript    = "script"
	BlockCondition = "condition"
	BlockParallel  = "parallel"
	BlockWait      = "wait"
	BlockNotify    = "notify"
	BlockApproval  = "approval"
)

func bound(v float64) *float64 { return &v }

// DefaultDefinitions returns the built-in block catalog.
func DefaultDefinitions() []models.BlockDefinition {
	return []models.BlockDefinition{
		{
			ID:          BlockWebhook,
			Name:        "Webhook",
			Icon:        "webhook",
			Description: "Start the pipeline when an HTTP request is received",
			Category:    models.CategoryTriggers,
			Schema: []models.FieldDescriptor{
				{Name: "path", Type: models.FieldTypeString, Label: "Path", Default: models.StringValue("/hooks/pipeline"), Required: true},
				{Name: "method", Type: models.FieldTypeSelect, Label: "Method", Default: models.StringValue("POST"), Choices: []string{"GET", "POST", "PUT"}},
				{Name: "secret", Type: models.FieldTypeString, Label: "Shared secret"},
			},
		},
		{
			ID:          BlockSchedule,
			Name:        "Schedule",
			Icon:        "clock",
			Description: "Start the pipeline on a cron schedule",
			Category:    models.CategoryTriggers,
			Schema: []models.FieldDescriptor{
				{Name: "cron", Type: models.FieldTypeString, Label: "Cron expression", Default: models.StringValue("0 0 * * *"), Format: "cron", Required: true},
				{Name: "timezone", Type: models.FieldTypeString, Label: "Timezone", Default: models.StringValue("UTC"), Format: "timezone"},
			},
		},
		{
			ID:          BlockGitPush,
			Name:        "Git Push",
			Icon:        "git-branch",
			Description: "Start the pipeline when commits are pushed",
			Category:    models.CategoryTriggers,
			Schema: []models.FieldDescriptor{
				{Name: "repository", Type: models.FieldTypeString, Label: "Repository", Required: true},
				{Name: "branches", Type: models.FieldTypeList, Label: "Branches", Default: models.ListValue("main")},
			},
		},
		{
			ID:          BlockBuild,
			Name:        "Build",
			Icon:        "hammer",
			Description: "Compile and package the service",
			Category:    models.CategoryExecution,
			Schema: []models.FieldDescriptor{
				{Name: "command", Type: models.FieldTypeString, Label: "Command", Default: models.StringValue("make build"), Required: true},
				{Name: "image", Type: models.FieldTypeString, Label: "Builder image", Default: models.StringValue("golang:1.24")},
				{Name: "timeout", Type: models.FieldTypeNumber, Label: "Timeout (s)", Default: models.NumberValue(600), Min: bound(1), Max: bound(3600)},
				{Name: "cache", Type: models.FieldTypeBoolean, Label: "Use build cache", Default: models.BoolValue(true)},
			},
		},
		{
			ID:          BlockTest,
			Name:        "Test",
			Icon:        "flask",
			Description: "Run the test suite",
			Category:    models.CategoryExecution,
			Schema: []models.FieldDescriptor{
				{Name: "command", Type: models.FieldTypeString, Label: "Command", Default: models.StringValue("make test"), Required: true},
				{Name: "parallelism", Type: models.FieldTypeNumber, Label: "Parallel workers", Default: models.NumberValue(1), Min: bound(1), Max: bound(32)},
				{Name: "coverage", Type: models.FieldTypeBoolean, Label: "Collect coverage", Default: models.BoolValue(false)},
			},
		},
		{
			ID:          BlockDeploy,
			Name:        "Deploy",
			Icon:        "rocket",
			Description: "Release the build to an environment",
			Category:    models.CategoryExecution,
			Schema: []models.FieldDescriptor{
				{Name: "environment", Type: models.FieldTypeSelect, Label: "Environment", Default: models.StringValue("staging"), Choices: []string{"development", "staging", "production"}, Required: true},
				{Name: "target", Type: models.FieldTypeString, Label: "Target URL"},
				{Name: "replicas", Type: models.FieldTypeNumber, Label: "Replicas", Default: models.NumberValue(1), Min: bound(0), Max: bound(100)},
				{Name: "auto_rollback", Type: models.FieldTypeBoolean, Label: "Roll back on failure", Default: models.BoolValue(true)},
			},
		},
		{
			ID:          BlockScript,
			Name:        "Script",
			Icon:        "terminal",
			Description: "Run an arbitrary shell script",
			Category:    models.CategoryExecution,
			Schema: []models.FieldDescriptor{
				{Name: "script", Type: models.FieldTypeText, Label: "Script", Required: true},
				{Name: "shell", Type: models.FieldTypeSelect, Label: "Shell", Default: models.StringValue("bash"), Choices: []string{"bash", "sh", "pwsh"}},
			},
		},
		{
			ID:          BlockCondition,
			Name:        "Condition",
			Icon:        "git-fork",
			Description: "Branch on an expression",
			Category:    models.CategoryFlow,
			Schema: []models.FieldDescriptor{
				{Name: "expression", Type: models.FieldTypeString, Label: "Expression", Default: models.StringValue("${BRANCH} == main"), Required: true},
			},
		},
		{
			ID:          BlockParallel,
			Name:        "Parallel",
			Icon:        "columns",
			Description: "Run downstream blocks concurrently",
			Category:    models.CategoryFlow,
			Schema: []models.FieldDescriptor{
				{Name: "max_concurrency", Type: models.FieldTypeNumber, Label: "Max concurrency", Default: models.NumberValue(2), Min: bound(1), Max: bound(16)},
			},
		},
		{
			ID:          BlockWait,
			Name:        "Wait",
			Icon:        "hourglass",
			Description: "Pause before continuing",
			Category:    models.CategoryFlow,
			Schema: []models.FieldDescriptor{
				{Name: "seconds", Type: models.FieldTypeNumber, Label: "Seconds", Default: models.NumberValue(60), Min: bound(0), Max: bound(86400), Required: true},
			},
		},
		{
			ID:          BlockNotify,
			Name:        "Notify",
			Icon:        "bell",
			Description: "Send a notification",
			Category:    models.CategoryAutomation,
			Schema: []models.FieldDescriptor{
				{Name: "channel", Type: models.FieldTypeSelect, Label: "Channel", Default: models.StringValue("slack"), Choices: []string{"slack", "email", "webhook"}, Required: true},
				{Name: "recipients", Type: models.FieldTypeList, Label: "Recipients"},
				{Name: "message", Type: models.FieldTypeText, Label: "Message", Default: models.StringValue("Pipeline finished")},
			},
		},
		{
			ID:          BlockApproval,
			Name:        "Approval",
			Icon:        "user-check",
			Description: "Wait for a manual approval",
			Category:    models.CategoryFlow,
			Schema: []models.FieldDescriptor{
				{Name: "approvers", Type: models.FieldTypeList, Label: "Approvers", Required: true},
				{Name: "timeout", Type: models.FieldTypeNumber, Label: "Timeout (min)", Default: models.NumberValue(60), Min: bound(1), Max: bound(10080)},
			},
		},
	}
}

// Default returns a registry holding the built-in catalog.
func Default() *Registry {
	return MustNew(DefaultDefinitions()...)
}
