// Package pulse holds the data model shared by extraction, serialization and
// approval: pulses, selection windows, selections and pulse groups.
package pulse

import (
	"fmt"
	"strings"

	"github.com/hpungsan/pulsekit/internal/errors"
)

// Pulse is one extracted event: equal-length time, current and voltage samples.
// The sample slices are owned by the Pulse and must not be modified.
type Pulse struct {
	time    []float64
	current []float64
	voltage []float64
}

// NewPulse validates and copies the three channels into a new Pulse.
func NewPulse(time, current, voltage []float64) (Pulse, error) {
	if len(time) != len(current) || len(time) != len(voltage) {
		return Pulse{}, errors.NewValidation(fmt.Sprintf(
			"channel lengths differ: time=%d, current=%d, voltage=%d",
			len(time), len(current), len(voltage)))
	}
	if len(time) == 0 {
		return Pulse{}, errors.NewValidation("pulse channels must not be empty")
	}
	return Pulse{
		time:    append([]float64(nil), time...),
		current: append([]float64(nil), current...),
		voltage: append([]float64(nil), voltage...),
	}, nil
}

// Len returns the number of samples.
func (p Pulse) Len() int { return len(p.time) }

// Time returns the time samples.
func (p Pulse) Time() []float64 { return p.time }

// Current returns the current samples.
func (p Pulse) Current() []float64 { return p.current }

// Voltage returns the voltage samples.
func (p Pulse) Voltage() []float64 { return p.voltage }

// Window is an index range (StartIndex, EndIndex) inside a raw recording.
type Window struct {
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
}

// NewWindow builds a window, swapping the bounds when end <= start.
func NewWindow(start, end int) (Window, error) {
	if start < 0 || end < 0 {
		return Window{}, errors.NewValidation(fmt.Sprintf("window indices must be >= 0, got (%d, %d)", start, end))
	}
	if end <= start {
		start, end = end, start
	}
	return Window{StartIndex: start, EndIndex: end}, nil
}

// Selection lists the windows to extract from one raw waveform file.
// BatchSize and OverlapSize are carried as metadata only.
type Selection struct {
	FileName    string   `json:"file_name"`
	BatchSize   int      `json:"batch_size"`
	OverlapSize int      `json:"overlap_size"`
	Windows     []Window `json:"selections"`
}

// Validate checks the selection invariants and normalizes every window.
func (s *Selection) Validate() error {
	if strings.TrimSpace(s.FileName) == "" {
		return errors.NewValidation("selection file_name must not be empty")
	}
	if s.BatchSize < 0 {
		return errors.NewValidation(fmt.Sprintf("%s: batch_size must be >= 0", s.FileName))
	}
	if s.OverlapSize < 0 {
		return errors.NewValidation(fmt.Sprintf("%s: overlap_size must be >= 0", s.FileName))
	}
	if len(s.Windows) == 0 {
		return errors.NewValidation(fmt.Sprintf("%s: selections must not be empty", s.FileName))
	}
	for i, w := range s.Windows {
		if w.StartIndex < 0 || w.EndIndex < 0 {
			return errors.NewValidation(fmt.Sprintf("%s: window %d: indices must be >= 0, got (%d, %d)",
				s.FileName, i, w.StartIndex, w.EndIndex))
		}
		s.Windows[i], _ = NewWindow(w.StartIndex, w.EndIndex)
	}
	return nil
}
