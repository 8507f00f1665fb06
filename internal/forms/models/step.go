package models

import (
	"strings"
	"time"

	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	"dynforms/pkg/jsondoc"
)

// UnknownStepOrder is assigned to step keys outside the fixed table.
const UnknownStepOrder = 99

const maxStepKeyLength = 100

var stepOrders = map[string]int{
	"personal_info":      1,
	"identity_documents": 2,
	"biometric":          3,
}

// StepOrderFor returns the display order for a step key.
func StepOrderFor(stepKey string) int {
	if order, ok := stepOrders[stepKey]; ok {
		return order
	}
	return UnknownStepOrder
}

// FormStepResponse is the answer payload for one step. There is at most one
// per (InstanceID, StepKey).
type FormStepResponse struct {
	ID               id.StepResponseID `json:"step_response_id"`
	InstanceID       id.InstanceID     `json:"instance_id"`
	StepKey          string            `json:"step_key"`
	StepOrder        int               `json:"step_order"`
	DataJSON         string            `json:"data_json"`
	ValidationErrors *string           `json:"validation_errors,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ParseStepKey trims and bounds a step key taken from a path segment.
func ParseStepKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "step key is required")
	}
	if len(key) > maxStepKeyLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "step key is too long")
	}
	return key, nil
}

func NewStepResponse(stepID id.StepResponseID, instanceID id.InstanceID, stepKey, dataJSON string, now time.Time) (*FormStepResponse, error) {
	if err := jsondoc.Require("data_json", dataJSON); err != nil {
		return nil, err
	}
	return &FormStepResponse{
		ID:         stepID,
		InstanceID: instanceID,
		StepKey:    stepKey,
		StepOrder:  StepOrderFor(stepKey),
		DataJSON:   dataJSON,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Replace swaps the payload in place; StepOrder is kept.
func (s *FormStepResponse) Replace(dataJSON string, now time.Time) error {
	if err := jsondoc.Require("data_json", dataJSON); err != nil {
		return err
	}
	s.DataJSON = dataJSON
	s.UpdatedAt = now
	return nil
}
