// Package codec reads and writes pulse collections in the tab-delimited text
// format:
//
//	time	current	voltage
//	start
//	<t0>	<i0>	<v0>
//	...
//
// Every pulse starts with a "start" marker line followed by one line per sample.
package codec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hpungsan/pulsekit/internal/errors"
	"github.com/hpungsan/pulsekit/internal/pulse"
)

const (
	// Header is the first line of every pulses file.
	Header = "time\tcurrent\tvoltage"
	// Marker opens each pulse.
	Marker = "start\t\t"

	markerToken = "start"
	maxLineSize = 1024 * 1024
)

// Encode writes pulses to w in the pulses text format.
func Encode(w io.Writer, pulses []pulse.Pulse) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header + "\n"); err != nil {
		return err
	}

	buf := make([]byte, 0, 96)
	for _, p := range pulses {
		if _, err := bw.WriteString(Marker + "\n"); err != nil {
			return err
		}
		time, current, voltage := p.Time(), p.Current(), p.Voltage()
		for i := range time {
			buf = buf[:0]
			buf = strconv.AppendFloat(buf, time[i], 'g', -1, 64)
			buf = append(buf, '\t')
			buf = strconv.AppendFloat(buf, current[i], 'g', -1, 64)
			buf = append(buf, '\t')
			buf = strconv.AppendFloat(buf, voltage[i], 'g', -1, 64)
			buf = append(buf, '\n')
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Decode parses the pulses text format from r. The first line is discarded
// without validation. source names the input in error messages.
func Decode(r io.Reader, source string) ([]pulse.Pulse, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var (
		pulses                 []pulse.Pulse
		time, current, voltage []float64
	)

	flush := func(line int) error {
		if len(time) == 0 {
			return nil
		}
		p, err := pulse.NewPulse(time, current, voltage)
		if err != nil {
			return errors.NewFormat(source, fmt.Sprintf("pulse ending at line %d: %v", line, err))
		}
		pulses = append(pulses, p)
		time, current, voltage = time[:0], current[:0], voltage[:0]
		return nil
	}

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum == 1 {
			continue
		}
		line := scanner.Text()

		if strings.HasPrefix(line, markerToken) {
			if err := flush(lineNum - 1); err != nil {
				return nil, err
			}
			continue
		}

		t, i, v, err := parseSample(line)
		if err != nil {
			return nil, errors.NewParseLine(source, lineNum, line, err)
		}
		time = append(time, t)
		current = append(current, i)
		voltage = append(voltage, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewFormat(source, fmt.Sprintf("read failed after line %d: %v", lineNum, err))
	}
	if err := flush(lineNum); err != nil {
		return nil, err
	}

	return pulses, nil
}

// ReadFile decodes the pulses file at path.
func ReadFile(path string) ([]pulse.Pulse, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	if info.IsDir() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("not a file: %s", path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to open pulses file: %w", err))
	}
	defer f.Close()

	return Decode(f, path)
}

// parseSample parses one "time\tcurrent\tvoltage" data line. Only the line
// ending is trimmed, so a trailing tab counts as a fourth field.
func parseSample(line string) (t, i, v float64, err error) {
	parts := strings.Split(strings.TrimRight(line, "\r"), "\t")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("expected 3 tab-separated fields, got %d", len(parts))
	}
	var vals [3]float64
	for k, s := range parts {
		vals[k], err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, 0, 0, err
		}
	}
	return vals[0], vals[1], vals[2], nil
}
