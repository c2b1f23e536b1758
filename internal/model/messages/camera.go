package messages

import "github.com/LeonardoBeccarini/greenhouse/internal/model/entities"

type CameraCommandType string

const (
	CommandTakePhoto   CameraCommandType = "takePhoto"
	CommandToggleFlash CameraCommandType = "toggleFlash"
	CommandSetInterval CameraCommandType = "setInterval"
)

// CameraCommand is written to the commands path; the board executes the
// latest one it sees.
type CameraCommand struct {
	ID        string             `json:"id"`
	Type      CameraCommandType  `json:"type"`
	Data      string             `json:"data,omitempty"`
	Timestamp entities.Timestamp `json:"timestamp"`
}

type Photo struct {
	ID        string             `json:"id"`
	ImageData string             `json:"imageData"`
	Timestamp entities.Timestamp `json:"timestamp"`
	Caption   string             `json:"caption,omitempty"`
}
