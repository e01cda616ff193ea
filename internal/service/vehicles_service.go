package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"voltflow/internal/models"
)

// RecognitionClient maps a structured prompt to a best-effort answer from
// a language model. It may fail or return malformed output; callers parse
// defensively.
type RecognitionClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const recognitionSystemPrompt = `You are an EV database assistant. Reply with a single JSON object ` +
	`with keys: make (string), model (string), year (number), battery_capacity_kwh (number), ` +
	`max_charging_power_kw (number), range_km (number), connector_types (array of strings). ` +
	`No prose, no markdown.`

var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// VehiclesService recognizes vehicles from a VIN or a make/model/year
// triple through the language-model endpoint.
type VehiclesService struct {
	client RecognitionClient
	logger *zap.Logger
}

// NewVehiclesService builds the recognition service.
func NewVehiclesService(client RecognitionClient, logger *zap.Logger) *VehiclesService {
	return &VehiclesService{client: client, logger: logger}
}

// RecognizeByVIN identifies a vehicle from its 17-character VIN.
func (s *VehiclesService) RecognizeByVIN(ctx context.Context, vin string) (*models.Vehicle, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if !vinPattern.MatchString(vin) {
		return nil, &ValidationError{Message: "vin must be 17 characters (no I, O or Q)"}
	}
	return s.recognize(ctx, fmt.Sprintf("Identify the electric vehicle with VIN %s.", vin))
}

// RecognizeByModel identifies a vehicle from make, model and year.
func (s *VehiclesService) RecognizeByModel(ctx context.Context, maker, model string, year int) (*models.Vehicle, error) {
	maker = strings.TrimSpace(maker)
	model = strings.TrimSpace(model)
	if maker == "" || model == "" {
		return nil, &ValidationError{Message: "make and model are required"}
	}
	if year < 1990 || year > 2100 {
		return nil, &ValidationError{Message: "year is out of range"}
	}
	return s.recognize(ctx, fmt.Sprintf("Identify the electric vehicle %s %s, model year %d.", maker, model, year))
}

func (s *VehiclesService) recognize(ctx context.Context, prompt string) (*models.Vehicle, error) {
	answer, err := s.client.Complete(ctx, recognitionSystemPrompt, prompt)
	if err != nil {
		return nil, &DependencyError{Message: "recognition service unavailable", Err: err}
	}

	vehicle, err := parseVehicleAnswer(answer)
	if err != nil {
		s.logger.Warn("malformed recognition answer", zap.Error(err))
		return nil, &DependencyError{Message: "recognition service returned malformed data", Err: err}
	}
	return vehicle, nil
}

// parseVehicleAnswer extracts the first JSON object from the model output
// and decodes it. Models occasionally wrap answers in prose or code
// fences despite instructions.
func parseVehicleAnswer(answer string) (*models.Vehicle, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in answer")
	}

	var vehicle models.Vehicle
	if err := json.Unmarshal([]byte(answer[start:end+1]), &vehicle); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	if vehicle.Make == "" || vehicle.Model == "" {
		return nil, fmt.Errorf("answer missing make or model")
	}
	return &vehicle, nil
}
