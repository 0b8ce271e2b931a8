// Package web provides the HTTP handlers of the pipeline editor API.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/polymicro/manager/pkg/editor"
	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/registry"
	"github.com/polymicro/manager/pkg/services"
)

type APIHandlers struct {
	pipelineService *services.Pipeline
	validator       *validator.Validate
	registry        *registry.Registry
}

func NewAPIHandlers(
	pipelineService *services.Pipeline,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		pipelineService: pipelineService,
		validator:       validator,
		registry:        registry,
	}
}

// Register mounts every API route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/catalog", h.GetCatalog)
	router.Get("/health", h.HealthCheck)

	p := router.Group("/pipelines")
	p.Get("/", h.GetPipelines)
	p.Post("/", h.CreatePipeline)
	p.Get("/:id", h.GetPipeline)
	p.Patch("/:id", h.UpdatePipeline)
	p.Delete("/:id", h.DeletePipeline)
	p.Get("/:id/lint", h.LintPipeline)
	p.Get("/:id/diagram", h.GetDiagram)

	p.Post("/:id/blocks", h.AddBlock)
	p.Patch("/:id/blocks/:blockId/position", h.MoveBlock)
	p.Put("/:id/blocks/:blockId/config", h.UpdateBlockConfig)
	p.Delete("/:id/blocks/:blockId", h.DeleteBlock)

	p.Post("/:id/connections", h.Connect)
	p.Post("/:id/connections/check", h.CheckConnection)
	p.Delete("/:id/connections/:connectionId", h.Disconnect)

	p.Post("/:id/variables", h.AddVariable)
	p.Patch("/:id/variables/:index", h.UpdateVariable)
	p.Delete("/:id/variables/:index", h.DeleteVariable)

	router.Get("/projects/:projectId/variables", h.GetGlobalVariables)
	router.Put("/projects/:projectId/variables", h.ReplaceGlobalVariables)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.pipelineService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Poly Micro Manager API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Poly Micro Manager API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetCatalog(c fiber.Ctx) error {
	category := models.Category(c.Query("category"))
	if category != "" && !category.Valid() {
		return badRequest(c, "Unknown category: "+string(category))
	}

	return c.JSON(fiber.Map{
		"blocks": h.pipelineService.Catalog(category),
		"rules":  h.pipelineService.Rules(),
	})
}

func (h *APIHandlers) GetPipelines(c fiber.Ctx) error {
	req, err := parseListPipelinesRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.pipelineService.ListPipelines(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"pipelines":     result.Pipelines,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

func parseListPipelinesRequest(c fiber.Ctx) (*services.ListPipelinesRequest, error) {
	req := &services.ListPipelinesRequest{
		ProjectID: c.Query("project_id"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	return req, nil
}

func (h *APIHandlers) CreatePipeline(c fiber.Ctx) error {
	var req services.CreatePipelineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.pipelineService.CreatePipeline(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetPipeline(c fiber.Ctx) error {
	pipeline, err := h.pipelineService.GetPipeline(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(pipeline)
}

func (h *APIHandlers) UpdatePipeline(c fiber.Ctx) error {
	var req services.UpdatePipelineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.pipelineService.UpdatePipeline(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeletePipeline(c fiber.Ctx) error {
	err := h.pipelineService.DeletePipeline(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) LintPipeline(c fiber.Ctx) error {
	lintErrors, err := h.pipelineService.Lint(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	entries := make([]LintEntry, len(lintErrors))
	for i, e := range lintErrors {
		entries[i] = LintEntry{BlockID: e.BlockID, Message: e.Message}
	}

	return c.JSON(LintResponse{Valid: len(entries) == 0, Errors: entries})
}

func (h *APIHandlers) GetDiagram(c fiber.Ctx) error {
	format := c.Query("format", "dot")

	diagram, err := h.pipelineService.Diagram(c.Context(), c.Params("id"), format)
	if err != nil {
		return handleServiceError(c, err)
	}

	contentType := "text/vnd.graphviz; charset=utf-8"
	if format == "text" {
		contentType = fiber.MIMETextPlainCharsetUTF8
	}

	c.Set(fiber.HeaderContentType, contentType)

	return c.SendString(diagram)
}

func (h *APIHandlers) AddBlock(c fiber.Ctx) error {
	var req services.AddBlockRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	block, err := h.pipelineService.AddBlock(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(block)
}

func (h *APIHandlers) MoveBlock(c fiber.Ctx) error {
	var req PositionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	block, err := h.pipelineService.MoveBlock(c.Context(), c.Params("id"), c.Params("blockId"), *req.X, *req.Y)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(block)
}

func (h *APIHandlers) UpdateBlockConfig(c fiber.Ctx) error {
	var req UpdateConfigRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	block, err := h.pipelineService.UpdateBlockConfig(c.Context(), c.Params("id"), c.Params("blockId"), req.Config)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(block)
}

func (h *APIHandlers) DeleteBlock(c fiber.Ctx) error {
	removed, err := h.pipelineService.DeleteBlock(c.Context(), c.Params("id"), c.Params("blockId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"removed_connections": removed})
}

func (h *APIHandlers) bindConnectRequest(c fiber.Ctx) (*editor.ConnectRequest, error) {
	var req editor.ConnectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, badRequest(c, "Invalid JSON format")
	}

	req = req.Normalize()

	if err := h.validator.Struct(req); err != nil {
		return nil, badRequest(c, err.Error())
	}

	return &req, nil
}

func (h *APIHandlers) Connect(c fiber.Ctx) error {
	req, err := h.bindConnectRequest(c)
	if req == nil {
		return err
	}

	conn, err := h.pipelineService.Connect(c.Context(), c.Params("id"), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(conn)
}

func (h *APIHandlers) CheckConnection(c fiber.Ctx) error {
	req, err := h.bindConnectRequest(c)
	if req == nil {
		return err
	}

	connType, err := h.pipelineService.CheckConnection(c.Context(), c.Params("id"), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"valid": true, "type": connType})
}

func (h *APIHandlers) Disconnect(c fiber.Ctx) error {
	err := h.pipelineService.Disconnect(c.Context(), c.Params("id"), c.Params("connectionId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) AddVariable(c fiber.Ctx) error {
	var req models.PipelineVariable
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	vars, err := h.pipelineService.AddVariable(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(variablesResponse(vars))
}

func (h *APIHandlers) UpdateVariable(c fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return badRequest(c, "Variable index must be an integer")
	}

	var req UpdateVariableRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	vars, err := h.pipelineService.UpdateVariable(c.Context(), c.Params("id"), index, editor.VariableField(req.Field), req.Value)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(variablesResponse(vars))
}

func (h *APIHandlers) DeleteVariable(c fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return badRequest(c, "Variable index must be an integer")
	}

	vars, err := h.pipelineService.DeleteVariable(c.Context(), c.Params("id"), index)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(variablesResponse(vars))
}

func (h *APIHandlers) GetGlobalVariables(c fiber.Ctx) error {
	vars, err := h.pipelineService.GlobalVariables(c.Context(), c.Params("projectId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(variablesResponse(vars))
}

func (h *APIHandlers) ReplaceGlobalVariables(c fiber.Ctx) error {
	var req GlobalVariablesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	vars, err := h.pipelineService.SaveGlobalVariables(c.Context(), c.Params("projectId"), req.Variables)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(variablesResponse(vars))
}
