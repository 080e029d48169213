// Package ml implements the statistical models behind fraud scoring:
// a standard feature scaler, an isolation forest for anomaly detection,
// and a random forest classifier. Models are trained once and shared
// read-only across requests; inference has no hidden mutable state.
package ml

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers and scales features to zero mean and unit
// variance. Fit once on training data; Transform applies the same
// fitted parameters at inference and never refits.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// Fit computes per-column mean and standard deviation.
func (s *StandardScaler) Fit(samples [][]float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("ml: cannot fit scaler on empty dataset")
	}

	dims := len(samples[0])
	s.Mean = make([]float64, dims)
	s.Std = make([]float64, dims)

	col := make([]float64, len(samples))
	for d := 0; d < dims; d++ {
		for i, row := range samples {
			col[i] = row[d]
		}
		s.Mean[d] = stat.Mean(col, nil)
		s.Std[d] = stat.StdDev(col, nil)
		if s.Std[d] == 0 {
			// Constant columns pass through unchanged.
			s.Std[d] = 1
		}
	}
	return nil
}

// Transform scales a single feature vector in place-safe copy form.
func (s *StandardScaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.Mean) {
		return nil, fmt.Errorf("ml: scaler expects %d features, got %d", len(s.Mean), len(features))
	}

	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = (v - s.Mean[i]) / s.Std[i]
	}
	return out, nil
}

// TransformAll scales a full dataset.
func (s *StandardScaler) TransformAll(samples [][]float64) ([][]float64, error) {
	out := make([][]float64, len(samples))
	for i, row := range samples {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

// Marshal serializes the fitted scaler for artifact storage.
func (s *StandardScaler) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("ml: failed to encode scaler: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalScaler restores a fitted scaler from artifact bytes.
func UnmarshalScaler(data []byte) (*StandardScaler, error) {
	var s StandardScaler
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("ml: failed to decode scaler: %w", err)
	}
	return &s, nil
}
