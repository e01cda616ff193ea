package models

import "time"

// Station is a charging station directory entry.
type Station struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Address        string    `db:"address" json:"address"`
	Latitude       float64   `db:"latitude" json:"latitude"`
	Longitude      float64   `db:"longitude" json:"longitude"`
	PricePerKWh    float64   `db:"price_per_kwh" json:"price_per_kwh"`
	PowerOutputKw  float64   `db:"power_output_kw" json:"power_output_kw"`
	ConnectorTypes []string  `db:"connector_types" json:"connector_types"`
	Amenities      []string  `db:"amenities" json:"amenities"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Snapshot copies the billing-relevant attributes into a session snapshot.
func (s *Station) Snapshot() StationSnapshot {
	return StationSnapshot{
		PricePerKWh:    s.PricePerKWh,
		PowerOutputKw:  s.PowerOutputKw,
		Address:        s.Address,
		ConnectorTypes: append([]string(nil), s.ConnectorTypes...),
		Amenities:      append([]string(nil), s.Amenities...),
	}
}
