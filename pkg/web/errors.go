package web

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/polymicro/manager/pkg/editor"
	"github.com/polymicro/manager/pkg/registry"
	"github.com/polymicro/manager/pkg/services"
)

// RejectionProblem is the 422 body of a refused edit. Rule names the
// connection rule that refused it; Fields lists configuration violations.
type RejectionProblem struct {
	*problems.Problem

	Rule   string                `json:"rule,omitempty"`
	Fields []registry.FieldError `json:"fields,omitempty"`
}

// MarshalJSON writes the problem members with rule and fields alongside them
// as RFC 7807 extension members.
func (p RejectionProblem) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any)

	if p.Problem != nil {
		base, err := json.Marshal(p.Problem)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(base, &doc); err != nil {
			return nil, err
		}
	}

	if p.Rule != "" {
		doc["rule"] = p.Rule
	}

	if len(p.Fields) > 0 {
		doc["fields"] = p.Fields
	}

	return json.Marshal(doc)
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

func unprocessable(c fiber.Ctx, err error) error {
	body := RejectionProblem{
		Problem: problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("unprocessable_edit").
			WithDetail(err.Error()),
	}

	var (
		rejection *editor.RejectionError
		configErr *registry.ConfigError
	)

	switch {
	case errors.As(err, &rejection):
		body.Problem = body.WithType("invalid_connection").WithDetail(rejection.Reason)
		body.Rule = rejection.Rule
	case errors.As(err, &configErr):
		body.Problem = body.WithType("invalid_config").WithDetail(configErr.Error())
		body.Fields = configErr.Fields
	case errors.Is(err, services.ErrUnknownBlockType):
		body.Problem = body.WithType("unknown_block_type")
	}

	return c.Status(fiber.StatusUnprocessableEntity).JSON(body)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case errors.Is(err, services.ErrPipelineNotFound):
		return notFound(c, "pipeline_not_found", "pipeline not found")

	case errors.Is(err, services.ErrBlockNotFound):
		return notFound(c, "block_not_found", "block not found")

	case errors.Is(err, services.ErrConnectionNotFound):
		return notFound(c, "connection_not_found", "connection not found")

	case errors.Is(err, services.ErrVariableNotFound):
		return notFound(c, "variable_not_found", "variable not found")

	case services.IsUnprocessableError(err):
		return unprocessable(c, err)

	default:
		return internalError(c, err)
	}
}
