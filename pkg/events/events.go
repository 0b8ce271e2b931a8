// Package events defines the pipeline lifecycle notifications published by the service layer.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/polymicro/manager/pkg/models"
)

type EventType string

// Topic carries every pipeline lifecycle event.
const Topic = "polymicro.pipelines"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	PipelineSavedEvent   EventType = "pipeline.saved"
	PipelineDeletedEvent EventType = "pipeline.deleted"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	PipelineID string    `json:"pipeline_id"`
	ProjectID  string    `json:"project_id,omitempty"`
}

func NewBaseEvent(eventType EventType, pipelineID, projectID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		PipelineID: pipelineID,
		ProjectID:  projectID,
	}
}

// PipelineSaved is published after every successful save, creation included.
type PipelineSaved struct {
	BaseEvent

	Name        string `json:"name"`
	Blocks      int    `json:"blocks"`
	Connections int    `json:"connections"`
	Created     bool   `json:"created"`
}

func (e PipelineSaved) GetType() EventType {
	return PipelineSavedEvent
}

func NewPipelineSaved(p *models.Pipeline, created bool) *PipelineSaved {
	return &PipelineSaved{
		BaseEvent:   NewBaseEvent(PipelineSavedEvent, p.ID, p.ProjectID),
		Name:        p.Name,
		Blocks:      len(p.Blocks),
		Connections: len(p.Connections),
		Created:     created,
	}
}

type PipelineDeleted struct {
	BaseEvent
}

func (e PipelineDeleted) GetType() EventType {
	return PipelineDeletedEvent
}

func NewPipelineDeleted(pipelineID, projectID string) *PipelineDeleted {
	return &PipelineDeleted{
		BaseEvent: NewBaseEvent(PipelineDeletedEvent, pipelineID, projectID),
	}
}

// GetPipelineID returns the pipeline the event is about; it is also the message key.
func (e BaseEvent) GetPipelineID() string {
	return e.PipelineID
}
