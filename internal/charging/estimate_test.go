package charging

import "testing"

func TestEstimateCharge(t *testing.T) {
	estimate := EstimateCharge(EstimateInput{
		BatteryCapacityKWh: 60,
		CurrentLevel:       20,
		TargetLevel:        80,
		PowerKw:            50,
		PricePerKWh:        165,
	}, DefaultParams())

	if !almostEqual(estimate.EnergyRequiredKWh, 36) {
		t.Fatalf("expected 36 kWh into the pack, got %f", estimate.EnergyRequiredKWh)
	}
	// 36 kWh into the pack at 0.9 efficiency means 40 kWh from the wall.
	if !almostEqual(estimate.DurationMinutes, 48) {
		t.Fatalf("expected 48 minutes at 50 kW, got %f", estimate.DurationMinutes)
	}
	if !almostEqual(estimate.EstimatedCost, 6600) {
		t.Fatalf("expected cost 6600, got %f", estimate.EstimatedCost)
	}
}

func TestEstimateChargeDefaults(t *testing.T) {
	estimate := EstimateCharge(EstimateInput{
		CurrentLevel: 0,
		TargetLevel:  100,
	}, Params{})

	if !almostEqual(estimate.EnergyRequiredKWh, DefaultAssumedCapacityKWh) {
		t.Fatalf("expected assumed capacity as full-charge energy, got %f", estimate.EnergyRequiredKWh)
	}
	if estimate.DurationMinutes != 0 {
		t.Fatalf("expected no duration without power, got %f", estimate.DurationMinutes)
	}
	if estimate.EstimatedCost <= 0 {
		t.Fatalf("expected fallback price to produce a cost, got %f", estimate.EstimatedCost)
	}
}
