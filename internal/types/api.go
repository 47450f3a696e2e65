package types

import (
	"time"

	"hkboard/internal/models"
)

// Request bodies of the structured store API. The board service builds them as change
// payloads and the API handlers decode them.

type RoomStatusRequest struct {
	Status models.RoomStatus `json:"status" validate:"required,oneof=checkout dirty clean default closed"`
}

type RoomGuestsRequest struct {
	HasGuests *bool `json:"hasGuests" validate:"required"`
}

type CompleteTaskRequest struct {
	CompletedBy string     `json:"completedBy"           validate:"required,max=64"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Error     string    `json:"error,omitempty"`
}

type TaskResponse struct {
	Success bool        `json:"success"`
	Task    models.Task `json:"task"`
}

type MessageResponse struct {
	Success bool               `json:"success"`
	Message models.ChatMessage `json:"message"`
}

type ArchiveResponse struct {
	Success bool           `json:"success"`
	Created bool           `json:"created"`
	Archive models.Archive `json:"archive"`
}
