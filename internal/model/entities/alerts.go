package entities

// AlertSettings is the destination e-mail plus one enable flag per quantity.
// The zero value has every alert disabled.
type AlertSettings struct {
	Email                 string `json:"email"`
	TemperatureAlerts     bool   `json:"temperatureAlerts"`
	MoistureAlerts        bool   `json:"moistureAlerts"`
	HumidityAlerts        bool   `json:"humidityAlerts"`
	SoilTemperatureAlerts bool   `json:"soilTemperatureAlerts"`
}

func (a AlertSettings) Enabled(q Quantity) bool {
	switch q {
	case QuantityTemperature:
		return a.TemperatureAlerts
	case QuantityMoisture:
		return a.MoistureAlerts
	case QuantityHumidity:
		return a.HumidityAlerts
	case QuantitySoilTemperature:
		return a.SoilTemperatureAlerts
	}
	return false
}

// AlertSettingsPatch is a partial update; nil fields are left untouched.
type AlertSettingsPatch struct {
	Email                 *string `json:"email,omitempty"`
	TemperatureAlerts     *bool   `json:"temperatureAlerts,omitempty"`
	MoistureAlerts        *bool   `json:"moistureAlerts,omitempty"`
	HumidityAlerts        *bool   `json:"humidityAlerts,omitempty"`
	SoilTemperatureAlerts *bool   `json:"soilTemperatureAlerts,omitempty"`
}

func (p AlertSettingsPatch) Empty() bool {
	return p.Email == nil && p.TemperatureAlerts == nil && p.MoistureAlerts == nil &&
		p.HumidityAlerts == nil && p.SoilTemperatureAlerts == nil
}

// Apply returns a copy of a with the patch applied.
func (p AlertSettingsPatch) Apply(a AlertSettings) AlertSettings {
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.TemperatureAlerts != nil {
		a.TemperatureAlerts = *p.TemperatureAlerts
	}
	if p.MoistureAlerts != nil {
		a.MoistureAlerts = *p.MoistureAlerts
	}
	if p.HumidityAlerts != nil {
		a.HumidityAlerts = *p.HumidityAlerts
	}
	if p.SoilTemperatureAlerts != nil {
		a.SoilTemperatureAlerts = *p.SoilTemperatureAlerts
	}
	return a
}
