package entities

const (
	FlashOn  = "ON"
	FlashOff = "OFF"

	DefaultPhotoInterval = "12.0"
	CameraNotConnected   = "Not connected yet"
)

// CameraStatus is what the camera board reports about itself.
type CameraStatus struct {
	FlashState         string    `json:"flashState"`
	PhotoIntervalHours string    `json:"photoIntervalHours"`
	LastUpdate         Timestamp `json:"lastUpdate"`
	IPAddress          string    `json:"ipAddress"`
	LastPhotoTime      Timestamp `json:"lastPhotoTime,omitempty"`
}

// DefaultCameraStatus is published when the board never reported a status.
func DefaultCameraStatus(now Timestamp) CameraStatus {
	return CameraStatus{
		FlashState:         FlashOff,
		PhotoIntervalHours: DefaultPhotoInterval,
		LastUpdate:         now,
		IPAddress:          CameraNotConnected,
		LastPhotoTime:      NoTimestamp,
	}
}

// Connected reports whether the board has ever published its address.
func (c CameraStatus) Connected() bool {
	return c.IPAddress != "" && c.IPAddress != CameraNotConnected
}
