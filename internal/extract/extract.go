// Package extract carves pulses out of raw waveform channels using the index
// windows of a selection.
package extract

import (
	"fmt"

	"github.com/hpungsan/pulsekit/internal/pulse"
	"github.com/hpungsan/pulsekit/internal/waveform"
)

// Skip records a window that was not extracted.
type Skip struct {
	Window int    `json:"window"`
	Start  int    `json:"start"`
	End    int    `json:"end"` // exclusive
	Length int    `json:"length"`
	Reason string `json:"reason"`
}

// Result holds the pulses of one raw file and the windows that were skipped.
type Result struct {
	Pulses  []pulse.Pulse
	Skipped []Skip
}

// Extract slices ch at every window of sel, in selection order. A window
// (start, end) covers samples start..end inclusive; windows falling outside
// the channels are skipped rather than failing the file.
func Extract(ch waveform.Channels, sel pulse.Selection) (Result, error) {
	if err := ch.Validate(); err != nil {
		return Result{}, err
	}

	n := ch.Len()
	res := Result{Pulses: make([]pulse.Pulse, 0, len(sel.Windows))}
	for idx, w := range sel.Windows {
		start, end := w.StartIndex, w.EndIndex+1

		if start < 0 || start >= n || end > n || start >= end {
			res.Skipped = append(res.Skipped, Skip{
				Window: idx,
				Start:  start,
				End:    end,
				Length: n,
				Reason: fmt.Sprintf("window %d-%d outside data range 0-%d", start, end, n),
			})
			continue
		}

		p, err := pulse.NewPulse(ch.Time[start:end], ch.Current[start:end], ch.Voltage[start:end])
		if err != nil {
			return Result{}, err
		}
		res.Pulses = append(res.Pulses, p)
	}
	return res, nil
}
