// Package npztest writes small NumPy archives for tests.
package npztest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"testing"
)

// WriteChannels writes an archive at path whose "data" entry is a little-endian
// float64 array of shape (3, len(time)) in C order.
func WriteChannels(t testing.TB, path string, time, voltage, current []float64) {
	t.Helper()
	flat := make([]float64, 0, len(time)*3)
	flat = append(flat, time...)
	flat = append(flat, voltage...)
	flat = append(flat, current...)
	WriteArray(t, path, "data.npy", []int{3, len(time)}, flat)
}

// WriteArray writes one float64 array entry with the given shape into a new
// archive at path.
func WriteArray(t testing.TB, path, entry string, shape []int, values []float64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create(entry)
	if err != nil {
		t.Fatalf("zip entry: %v", err)
	}
	if _, err := w.Write(encodeNPY(shape, values)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

// encodeNPY encodes values as a version 1.0 .npy payload.
func encodeNPY(shape []int, values []float64) []byte {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = fmt.Sprint(d)
	}
	shapeStr := strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%s), }", shapeStr)

	// magic(6) + version(2) + header length(2) + header, padded to 64 bytes
	total := 10 + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	_ = binary.Write(&buf, binary.LittleEndian, values)
	return buf.Bytes()
}
