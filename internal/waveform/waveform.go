// Package waveform reads raw instrument captures: NumPy .npz archives whose
// "data" entry is a (3, N) array holding time, voltage and current rows.
package waveform

import (
	"fmt"
	"os"
	"strings"

	"github.com/sbinet/npyio/npz"

	"github.com/hpungsan/pulsekit/internal/errors"
)

// DataKey is the archive entry holding the three channels.
const DataKey = "data"

// Channels holds the synchronized samples of one raw capture.
type Channels struct {
	Time    []float64
	Voltage []float64
	Current []float64
}

// Len returns the number of samples per channel.
func (c Channels) Len() int { return len(c.Time) }

// Validate checks that all three channels have the same length.
func (c Channels) Validate() error {
	if len(c.Voltage) != len(c.Time) || len(c.Current) != len(c.Time) {
		return errors.NewValidation(fmt.Sprintf("channel lengths differ: time=%d, voltage=%d, current=%d",
			len(c.Time), len(c.Voltage), len(c.Current)))
	}
	return nil
}

// ReadNPZ loads the channels stored under DataKey in the archive at path.
func ReadNPZ(path string) (Channels, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Channels{}, errors.NewNotFound(path)
		}
		return Channels{}, errors.NewInternal(err)
	}

	r, err := npz.Open(path)
	if err != nil {
		return Channels{}, errors.NewFormat(path, fmt.Sprintf("not a valid npz archive: %v", err))
	}
	defer r.Close()

	key := findKey(r.Keys())
	if key == "" {
		return Channels{}, errors.NewFormat(path, fmt.Sprintf("key %q not found in archive", DataKey))
	}

	hdr := r.Header(key)
	if hdr == nil {
		return Channels{}, errors.NewFormat(path, fmt.Sprintf("missing header for %q", key))
	}
	shape := hdr.Descr.Shape
	if len(shape) != 2 || shape[0] != 3 {
		return Channels{}, errors.NewFormat(path, fmt.Sprintf("%q must have shape (3, N), got %v", DataKey, shape))
	}

	flat, err := readFloats(r, key, hdr.Descr.Type)
	if err != nil {
		return Channels{}, errors.NewFormat(path, err.Error())
	}
	if len(flat) != 3*shape[1] {
		return Channels{}, errors.NewFormat(path, fmt.Sprintf("%q holds %d values, want %d", DataKey, len(flat), 3*shape[1]))
	}

	rows := splitRows(flat, shape[1], hdr.Descr.Fortran)
	return Channels{Time: rows[0], Voltage: rows[1], Current: rows[2]}, nil
}

// findKey returns the archive key naming the data entry.
func findKey(keys []string) string {
	for _, k := range keys {
		if k == DataKey || k == DataKey+".npy" {
			return k
		}
	}
	return ""
}

// readFloats reads the entry as float64, converting from the stored dtype.
func readFloats(r *npz.Reader, key, dtype string) ([]float64, error) {
	switch strings.TrimLeft(dtype, "<>|=") {
	case "f8":
		var v []float64
		if err := r.Read(key, &v); err != nil {
			return nil, fmt.Errorf("reading %q: %w", key, err)
		}
		return v, nil
	case "f4":
		var v []float32
		if err := r.Read(key, &v); err != nil {
			return nil, fmt.Errorf("reading %q: %w", key, err)
		}
		return widen(v), nil
	case "i8":
		var v []int64
		if err := r.Read(key, &v); err != nil {
			return nil, fmt.Errorf("reading %q: %w", key, err)
		}
		return widen(v), nil
	case "i4":
		var v []int32
		if err := r.Read(key, &v); err != nil {
			return nil, fmt.Errorf("reading %q: %w", key, err)
		}
		return widen(v), nil
	default:
		return nil, fmt.Errorf("unsupported dtype %q for %q", dtype, key)
	}
}

func widen[T float32 | int64 | int32](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// splitRows splits a flattened (3, n) array into its three rows.
func splitRows(flat []float64, n int, fortran bool) [3][]float64 {
	var rows [3][]float64
	for r := range rows {
		rows[r] = make([]float64, n)
		for c := 0; c < n; c++ {
			if fortran {
				rows[r][c] = flat[c*3+r]
			} else {
				rows[r][c] = flat[r*n+c]
			}
		}
	}
	return rows
}
