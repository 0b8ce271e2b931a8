package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/polymicro/manager/pkg/editor"
	"github.com/polymicro/manager/pkg/registry"
	"github.com/polymicro/manager/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRejectionProblem_MarshalJSON(t *testing.T) {
	body := RejectionProblem{
		Problem: problems.NewStatusProblem(422).WithType("invalid_connection").WithDetail("nope"),
		Rule:    editor.RuleStageOrder,
	}

	data, err := json.Marshal(body)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "invalid_connection", doc["type"])
	assert.Equal(t, "nope", doc["detail"])
	assert.InDelta(t, 422, doc["status"], 0)
	assert.Equal(t, "stage_order", doc["rule"])
	assert.NotContains(t, doc, "fields")
}

func TestHandleServiceError_Unprocessable(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedType string
		expectedRule string
		fieldCount   int
	}{
		{
			name: "connection rejected",
			err: &services.ServiceError{Op: "Connect", Code: editor.RuleStageOrder,
				Err: &editor.RejectionError{Rule: editor.RuleStageOrder, Reason: "Invalid connection: Deploy cannot precede Build"}},
			expectedType: "invalid_connection",
			expectedRule: "stage_order",
		},
		{
			name: "config invalid",
			err: &services.ServiceError{Op: "UpdateBlockConfig", Code: "invalid_config",
				Err: &registry.ConfigError{BlockType: "deploy", Fields: []registry.FieldError{{Field: "environment", Message: "bad"}}}},
			expectedType: "invalid_config",
			fieldCount:   1,
		},
		{
			name:         "unknown block type",
			err:          fmt.Errorf("add: %w", services.ErrUnknownBlockType),
			expectedType: "unknown_block_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c fiber.Ctx) error { return handleServiceError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)

			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

			data, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			var doc struct {
				Type   string                `json:"type"`
				Rule   string                `json:"rule"`
				Fields []registry.FieldError `json:"fields"`
			}
			require.NoError(t, json.Unmarshal(data, &doc), string(data))

			assert.Equal(t, tt.expectedType, doc.Type)
			assert.Equal(t, tt.expectedRule, doc.Rule)
			assert.Len(t, doc.Fields, tt.fieldCount)
		})
	}
}
