package types

// Request bodies of the dashboard API used by the housekeeping tablets.

type LoginRequest struct {
	Identity string `json:"identity" validate:"required,oneof=admin housekeeper-1 housekeeper-2 housekeeper-3 housekeeper-4"`
}

type UpdateRoomStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=checkout dirty clean default closed"`
}

type SetRoomGuestsRequest struct {
	HasGuests *bool `json:"hasGuests" validate:"required"`
}

type AddTaskRequest struct {
	RoomNumber string `json:"roomNumber" validate:"required,len=3,numeric"`
	Message    string `json:"message"    validate:"required,max=500"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// ConfirmRequest guards destructive admin actions.
type ConfirmRequest struct {
	Confirm bool `json:"confirm"`
}
