package models

// Vehicle is the structured result of recognizing a car from a VIN or a
// make/model/year triple. Values are best-effort output of the language
// model and should be treated as estimates.
type Vehicle struct {
	Make               string   `json:"make"`
	Model              string   `json:"model"`
	Year               int      `json:"year"`
	BatteryCapacityKWh float64  `json:"battery_capacity_kwh"`
	MaxChargingPowerKw float64  `json:"max_charging_power_kw"`
	RangeKm            float64  `json:"range_km"`
	ConnectorTypes     []string `json:"connector_types"`
}
