package charging

// EstimateInput describes a planned charge.
type EstimateInput struct {
	BatteryCapacityKWh float64
	CurrentLevel       float64
	TargetLevel        float64
	PowerKw            float64
	PricePerKWh        float64
}

// Estimate is the projected outcome of a planned charge.
type Estimate struct {
	EnergyRequiredKWh float64 `json:"energy_required_kwh"`
	DurationMinutes   float64 `json:"duration_minutes"`
	EstimatedCost     float64 `json:"estimated_cost"`
}

// EstimateCharge projects energy, duration and cost of charging a pack
// from the current to the target level at the given power. Missing inputs
// fall back to the params' defaults; charger losses mean the wall draws
// energy/efficiency for every kWh that lands in the pack.
func EstimateCharge(in EstimateInput, params Params) Estimate {
	params = params.Normalize()

	capacity := in.BatteryCapacityKWh
	if capacity <= 0 {
		capacity = params.AssumedCapacityKWh
	}
	price := in.PricePerKWh
	if price <= 0 {
		price = params.DefaultPricePerKWh
	}

	energy := EnergyFromLevels(in.CurrentLevel, in.TargetLevel, capacity)
	wallEnergy := energy / params.Efficiency

	var minutes float64
	if in.PowerKw > 0 && energy > 0 {
		minutes = wallEnergy / in.PowerKw * 60
	}

	return Estimate{
		EnergyRequiredKWh: energy,
		DurationMinutes:   minutes,
		EstimatedCost:     Cost(wallEnergy, price),
	}
}
