package entities

// SystemStatus is the heartbeat of the controller board.
type SystemStatus struct {
	IsOnline  bool      `json:"isOnline"`
	IPAddress string    `json:"ipAddress"`
	LastSeen  Timestamp `json:"lastSeen"`
	Version   string    `json:"version"`
	FreeHeap  int64     `json:"freeHeap,omitempty"`
	StartTime Timestamp `json:"startTime,omitempty"`
}
