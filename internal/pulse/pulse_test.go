package pulse

import (
	"testing"

	"github.com/hpungsan/pulsekit/internal/errors"
)

func mustPulse(t *testing.T, n int) Pulse {
	t.Helper()
	time := make([]float64, n)
	current := make([]float64, n)
	voltage := make([]float64, n)
	for i := range time {
		time[i] = float64(i)
		current[i] = float64(i) * 0.5
		voltage[i] = float64(i) * 2
	}
	p, err := NewPulse(time, current, voltage)
	if err != nil {
		t.Fatalf("NewPulse failed: %v", err)
	}
	return p
}

func TestNewPulse(t *testing.T) {
	tests := []struct {
		name    string
		time    []float64
		current []float64
		voltage []float64
		wantErr bool
	}{
		{"equal lengths", []float64{0, 1}, []float64{1, 2}, []float64{3, 4}, false},
		{"single sample", []float64{0}, []float64{1}, []float64{2}, false},
		{"current shorter", []float64{0, 1}, []float64{1}, []float64{3, 4}, true},
		{"voltage longer", []float64{0}, []float64{1}, []float64{3, 4}, true},
		{"empty", nil, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPulse(tt.time, tt.current, tt.voltage)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrValidation) {
					t.Errorf("expected VALIDATION_ERROR, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewPulse_CopiesInput(t *testing.T) {
	time := []float64{0, 1}
	p, err := NewPulse(time, []float64{1, 2}, []float64{3, 4})
	if err != nil {
		t.Fatalf("NewPulse failed: %v", err)
	}
	time[0] = 42
	if p.Time()[0] != 0 {
		t.Errorf("pulse shares storage with caller slice")
	}
}

func TestNewWindow(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		wantStart  int
		wantEnd    int
		wantErr    bool
	}{
		{"ordered", 2, 5, 2, 5, false},
		{"reversed is swapped", 9, 3, 3, 9, false},
		{"equal stays equal", 4, 4, 4, 4, false},
		{"negative start", -1, 3, 0, 0, true},
		{"negative end", 1, -3, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWindow(tt.start, tt.end)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if w.StartIndex != tt.wantStart || w.EndIndex != tt.wantEnd {
				t.Errorf("window = (%d, %d), want (%d, %d)", w.StartIndex, w.EndIndex, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestSelectionValidate(t *testing.T) {
	s := Selection{
		FileName: "run1.npz",
		Windows:  []Window{{StartIndex: 10, EndIndex: 2}, {StartIndex: 0, EndIndex: 4}},
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if s.Windows[0].StartIndex != 2 || s.Windows[0].EndIndex != 10 {
		t.Errorf("window 0 not normalized: %+v", s.Windows[0])
	}

	bad := []Selection{
		{FileName: "", Windows: []Window{{0, 1}}},
		{FileName: "a.npz"},
		{FileName: "a.npz", BatchSize: -1, Windows: []Window{{0, 1}}},
		{FileName: "a.npz", OverlapSize: -1, Windows: []Window{{0, 1}}},
		{FileName: "a.npz", Windows: []Window{{-2, 1}}},
	}
	for i, s := range bad {
		if err := s.Validate(); !errors.Is(err, errors.ErrValidation) {
			t.Errorf("case %d: expected VALIDATION_ERROR, got %v", i, err)
		}
	}
}

func TestGroup_SetApprovedAndMask(t *testing.T) {
	g := NewGroup("a.txt", []Pulse{mustPulse(t, 2), mustPulse(t, 3), mustPulse(t, 4)})

	if err := g.SetApproved(1, false); err != nil {
		t.Fatalf("SetApproved failed: %v", err)
	}
	if g.ApprovedCount() != 2 {
		t.Errorf("ApprovedCount = %d, want 2", g.ApprovedCount())
	}
	approved := g.Approved()
	if len(approved) != 2 || approved[1].Len() != 4 {
		t.Errorf("Approved() returned wrong pulses")
	}

	mask := g.Mask()
	want := []bool{true, false, true}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("mask[%d] = %v, want %v", i, mask[i], want[i])
		}
	}

	if err := g.SetApproved(3, true); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST for out of range index, got %v", err)
	}
}

func TestGroup_MaskAfterFiltering(t *testing.T) {
	g := NewGroup("a.txt", []Pulse{mustPulse(t, 1), mustPulse(t, 1), mustPulse(t, 1)})
	items, err := ApplyMask(g.Items, []bool{true, false, true})
	if err != nil {
		t.Fatalf("ApplyMask failed: %v", err)
	}
	g.Items = items

	if g.Len() != 2 {
		t.Fatalf("Len = %d, want 2", g.Len())
	}
	mask := g.Mask()
	if len(mask) != 3 {
		t.Fatalf("mask length = %d, want 3", len(mask))
	}
	if !mask[0] || mask[1] || !mask[2] {
		t.Errorf("mask = %v, want [true false true]", mask)
	}
}

func TestApplyMask_LengthMismatch(t *testing.T) {
	g := NewGroup("a.txt", []Pulse{mustPulse(t, 1)})
	if _, err := ApplyMask(g.Items, []bool{true, true}); !errors.Is(err, errors.ErrFormat) {
		t.Errorf("expected FORMAT_ERROR, got %v", err)
	}
}
