package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("analysis run", "run-42")

	if !IsNotFoundError(err) {
		t.Error("Expected constructed error to match ErrNotFound")
	}
	if !strings.Contains(err.Error(), "analysis run") || !strings.Contains(err.Error(), "run-42") {
		t.Errorf("Expected resource and id in message, got %q", err.Error())
	}
	if IsParameterError(err) {
		t.Error("Not-found error should not match ErrInvalidParameter")
	}
}

func TestParameterError(t *testing.T) {
	err := NewParameterError("bandwidth", "must be positive")

	if !IsParameterError(err) {
		t.Error("Expected constructed error to match ErrInvalidParameter")
	}
	if !strings.Contains(err.Error(), "bandwidth must be positive") {
		t.Errorf("Expected name and reason in message, got %q", err.Error())
	}
}

func TestSampleError(t *testing.T) {
	err := NewSampleError("estimation window", 12, 20)

	if !IsSampleError(err) {
		t.Error("Expected constructed error to match ErrInsufficientSample")
	}
	if !strings.Contains(err.Error(), "12") || !strings.Contains(err.Error(), "20") {
		t.Errorf("Expected counts in message, got %q", err.Error())
	}
}

func TestDegeneracyError(t *testing.T) {
	err := NewDegeneracyError("collinear design")

	if !IsDegeneracyError(err) {
		t.Error("Expected constructed error to match ErrNumericDegeneracy")
	}
}

func TestErrorMatchingSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("fit at bandwidth 5: %w", NewSampleError("window", 3, 20))

	if !IsSampleError(wrapped) {
		t.Error("Expected wrapped error to still match ErrInsufficientSample")
	}
	if !IsEstimationError(wrapped) {
		t.Error("Expected wrapped sample error to count as an estimation error")
	}
}

func TestIsEstimationError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{NewParameterError("cutoff", "out of range"), true},
		{NewSampleError("window", 1, 20), true},
		{NewDegeneracyError("zero variance"), true},
		{NewNotFoundError("analysis run", "x"), false},
		{errors.New("disk full"), false},
	}

	for _, tt := range tests {
		if got := IsEstimationError(tt.err); got != tt.expected {
			t.Errorf("IsEstimationError(%v) = %t, expected %t", tt.err, got, tt.expected)
		}
	}
}

func TestAnalysisNotFoundMatchesNotFound(t *testing.T) {
	if !errors.Is(ErrAnalysisNotFound, ErrNotFound) {
		t.Error("ErrAnalysisNotFound should match ErrNotFound")
	}
}
