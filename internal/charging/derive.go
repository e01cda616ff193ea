package charging

import "time"

// Defaults used when a session carries no usable telemetry or snapshot.
// They are configuration-overridable; the constants document the fallback
// contract.
const (
	DefaultEfficiency         = 0.9
	DefaultAssumedCapacityKWh = 60.0
	DefaultPricePerKWh        = 165.0
)

// Params carries the tunable derivation inputs.
type Params struct {
	Efficiency         float64
	AssumedCapacityKWh float64
	DefaultPricePerKWh float64
}

// DefaultParams returns the documented fallback values.
func DefaultParams() Params {
	return Params{
		Efficiency:         DefaultEfficiency,
		AssumedCapacityKWh: DefaultAssumedCapacityKWh,
		DefaultPricePerKWh: DefaultPricePerKWh,
	}
}

// Normalize fills zero or negative fields with the documented defaults.
func (p Params) Normalize() Params {
	if p.Efficiency <= 0 || p.Efficiency > 1 {
		p.Efficiency = DefaultEfficiency
	}
	if p.AssumedCapacityKWh <= 0 {
		p.AssumedCapacityKWh = DefaultAssumedCapacityKWh
	}
	if p.DefaultPricePerKWh <= 0 {
		p.DefaultPricePerKWh = DefaultPricePerKWh
	}
	return p
}

// ElapsedHours returns the wall-clock hours between start and now,
// never negative.
func ElapsedHours(start, now time.Time) float64 {
	h := now.Sub(start).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// DurationMinutes returns the wall-clock minutes between start and end,
// never negative.
func DurationMinutes(start, end time.Time) float64 {
	m := end.Sub(start).Minutes()
	if m < 0 {
		return 0
	}
	return m
}

// EnergyDelivered computes kWh from power, elapsed time and charger
// efficiency. Non-positive power or time yields zero.
func EnergyDelivered(powerKw, elapsedHours, efficiency float64) float64 {
	if powerKw <= 0 || elapsedHours <= 0 {
		return 0
	}
	return powerKw * elapsedHours * efficiency
}

// BatteryLevel projects the battery percentage after delivering energy
// into a pack of the given capacity, capped at 100.
func BatteryLevel(startLevel, energyKWh, capacityKWh float64) float64 {
	if capacityKWh <= 0 {
		return startLevel
	}
	level := startLevel + (energyKWh/capacityKWh)*100
	if level > 100 {
		return 100
	}
	return level
}

// Cost prices delivered energy, never negative.
func Cost(energyKWh, pricePerKWh float64) float64 {
	if energyKWh <= 0 || pricePerKWh <= 0 {
		return 0
	}
	return energyKWh * pricePerKWh
}

// AveragePower returns kW over the session, zero when no time elapsed.
func AveragePower(energyKWh, durationMinutes float64) float64 {
	if durationMinutes <= 0 || energyKWh <= 0 {
		return 0
	}
	return energyKWh / (durationMinutes / 60)
}

// EnergyFromLevels estimates kWh needed to move a pack between two
// percentage levels, floored at zero.
func EnergyFromLevels(fromLevel, toLevel, capacityKWh float64) float64 {
	if capacityKWh <= 0 || toLevel <= fromLevel {
		return 0
	}
	return (toLevel - fromLevel) / 100 * capacityKWh
}
