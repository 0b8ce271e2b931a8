package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polymicro/manager/pkg/eventbus"
	"github.com/polymicro/manager/pkg/events"
)

// watchPipelineEvents logs every pipeline lifecycle event seen on the bus.
func watchPipelineEvents(ctx context.Context, bus eventbus.EventSubscriber, logger *slog.Logger) error {
	logger = logger.With("component", "event_watcher")

	err := bus.Handle(events.PipelineSavedEvent, func(ctx context.Context, event any) error {
		saved, ok := event.(*events.PipelineSaved)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		logger.InfoContext(ctx, "Pipeline saved",
			"pipeline_id", saved.PipelineID,
			"project_id", saved.ProjectID,
			"blocks", saved.Blocks,
			"connections", saved.Connections,
			"created", saved.Created)

		return nil
	})
	if err != nil {
		return err
	}

	err = bus.Handle(events.PipelineDeletedEvent, func(ctx context.Context, event any) error {
		deleted, ok := event.(*events.PipelineDeleted)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		logger.InfoContext(ctx, "Pipeline deleted", "pipeline_id", deleted.PipelineID, "project_id", deleted.ProjectID)

		return nil
	})
	if err != nil {
		return err
	}

	return bus.Subscribe(ctx)
}
