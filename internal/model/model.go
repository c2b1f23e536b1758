package model

import (
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/messages"
)

// Aliases exposing the common types to the services.

type (
	Reading         = entities.Reading
	Readings        = entities.Readings
	Timestamp       = entities.Timestamp
	Quantity        = entities.Quantity
	ThresholdConfig = entities.ThresholdConfig
	AlertSettings   = entities.AlertSettings
	Relay           = entities.Relay
	RelayStatus     = entities.RelayStatus
	ModeSettings    = entities.ModeSettings
	CameraStatus    = entities.CameraStatus
	SystemStatus    = entities.SystemStatus

	SensorSnapshot = messages.SensorSnapshot
	HistoryPoint   = messages.HistoryPoint
	CameraCommand  = messages.CameraCommand
	Photo          = messages.Photo
)

const (
	QuantityTemperature     = entities.QuantityTemperature
	QuantityMoisture        = entities.QuantityMoisture
	QuantityHumidity        = entities.QuantityHumidity
	QuantitySoilTemperature = entities.QuantitySoilTemperature
)
