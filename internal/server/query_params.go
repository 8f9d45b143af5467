package server

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var errMissingValue = errors.New("missing_value")

func parseOptionalInt64(value string) (*int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseSensorID(value string) (int64, error) {
	id, err := parseOptionalInt64(value)
	if err != nil || id == nil || *id <= 0 {
		return 0, newValidationError("id", "invalid_id", "id must be a positive integer")
	}
	return *id, nil
}

func parseRequiredFloat(value string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errMissingValue
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, errors.New("non_finite_value")
	}
	return parsed, nil
}
