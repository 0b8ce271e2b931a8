package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/polymicro/manager/pkg/cmd"
	"github.com/polymicro/manager/pkg/eventbus"
	"github.com/polymicro/manager/pkg/events"
	"github.com/polymicro/manager/pkg/persistence/file"
	"github.com/polymicro/manager/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T, bus eventbus.EventBus) *fiber.App {
	t.Helper()

	api := NewAPI(
		slog.New(slog.DiscardHandler),
		file.NewPersistence(t.TempDir()),
		registry.Default(),
		bus,
		0,
		nil,
	)

	return api.App()
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t, nil)

	status, body := get(t, app, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Poly Micro Manager API", body)
}

func TestAPI_Liveness(t *testing.T) {
	app := setupTestApp(t, nil)

	status, body := get(t, app, "/livez")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)
}

func TestAPI_CatalogMounted(t *testing.T) {
	app := setupTestApp(t, nil)

	status, body := get(t, app, "/catalog?category=flow")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"condition"`)
}

func TestAPI_PublishesPipelineEvents(t *testing.T) {
	bus, err := cmd.NewEventBus("gochannel", nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan *events.PipelineSaved, 1)

	require.NoError(t, bus.Handle(events.PipelineSavedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.PipelineSaved)

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	app := setupTestApp(t, bus)

	payload, err := json.Marshal(map[string]string{"project_id": "project-1", "name": "Nightly"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/pipelines", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	_ = resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	select {
	case saved := <-received:
		assert.Equal(t, "project-1", saved.ProjectID)
		assert.True(t, saved.Created)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline.saved event not received")
	}
}
