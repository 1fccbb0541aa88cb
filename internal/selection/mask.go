// Package selection reads and writes the JSON files that describe which
// pulses are approved, and the selections.json file that drives extraction.
package selection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hpungsan/pulsekit/internal/errors"
)

// Payload is one of the recognized selections file shapes:
// FlatMask, GroupPayload or AggregatePayload.
type Payload interface {
	isPayload()
}

// FlatMask is a bare JSON list of booleans, index-aligned with the pulses.
type FlatMask []bool

// GroupPayload is {"file_name": ..., "pulses": [{"approved": bool}, ...]}.
// FileName is optional for a single group and required inside an aggregate.
type GroupPayload struct {
	FileName string
	Approved []bool
}

// AggregatePayload is {"groups": [GroupPayload, ...]}, keyed by file name.
type AggregatePayload struct {
	Groups []GroupPayload
}

func (FlatMask) isPayload()         {}
func (GroupPayload) isPayload()     {}
func (AggregatePayload) isPayload() {}

// Parse decodes a selections payload. Shapes are recognized in a fixed order:
// a bare list, then an object with "pulses", then an object with "groups".
func Parse(data []byte, source string) (Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.NewFormat(source, "empty selections file")
	}

	switch trimmed[0] {
	case '[':
		var raw []any
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, errors.NewFormat(source, fmt.Sprintf("invalid JSON: %v", err))
		}
		mask := make(FlatMask, len(raw))
		for i, v := range raw {
			b, ok := v.(bool)
			if !ok {
				return nil, errors.NewFormat(source, fmt.Sprintf("entry %d is not a boolean", i))
			}
			mask[i] = b
		}
		return mask, nil

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, errors.NewFormat(source, fmt.Sprintf("invalid JSON: %v", err))
		}
		if _, ok := obj["pulses"]; ok {
			g, err := parseGroup(obj, false)
			if err != nil {
				return nil, errors.NewFormat(source, err.Error())
			}
			return g, nil
		}
		if rawGroups, ok := obj["groups"]; ok {
			agg, err := parseAggregate(rawGroups)
			if err != nil {
				return nil, errors.NewFormat(source, err.Error())
			}
			return agg, nil
		}
		return nil, errors.NewFormat(source, `object has neither "pulses" nor "groups"`)
	}

	return nil, errors.NewFormat(source, "unsupported selections shape")
}

func parseAggregate(data json.RawMessage) (AggregatePayload, error) {
	var rawGroups []json.RawMessage
	if err := json.Unmarshal(data, &rawGroups); err != nil || rawGroups == nil {
		return AggregatePayload{}, fmt.Errorf(`"groups" must be a list`)
	}
	agg := AggregatePayload{Groups: make([]GroupPayload, 0, len(rawGroups))}
	for i, rg := range rawGroups {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(rg, &obj); err != nil || obj == nil {
			return AggregatePayload{}, fmt.Errorf("group %d must be an object", i)
		}
		g, err := parseGroup(obj, true)
		if err != nil {
			return AggregatePayload{}, fmt.Errorf("group %d: %w", i, err)
		}
		agg.Groups = append(agg.Groups, g)
	}
	return agg, nil
}

func parseGroup(obj map[string]json.RawMessage, requireName bool) (GroupPayload, error) {
	var g GroupPayload

	if rawName, ok := obj["file_name"]; ok {
		if err := json.Unmarshal(rawName, &g.FileName); err != nil {
			return GroupPayload{}, fmt.Errorf(`"file_name" must be a string`)
		}
	} else if requireName {
		return GroupPayload{}, fmt.Errorf(`missing "file_name"`)
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(obj["pulses"], &items); err != nil || items == nil {
		return GroupPayload{}, fmt.Errorf(`"pulses" must be a list of objects`)
	}
	g.Approved = make([]bool, len(items))
	for i, item := range items {
		rawApproved, ok := item["approved"]
		if !ok {
			return GroupPayload{}, fmt.Errorf(`pulse %d has no "approved" field`, i)
		}
		var v any
		if err := json.Unmarshal(rawApproved, &v); err != nil {
			return GroupPayload{}, fmt.Errorf(`pulse %d: %v`, i, err)
		}
		b, ok := v.(bool)
		if !ok {
			return GroupPayload{}, fmt.Errorf(`pulse %d: "approved" must be a boolean`, i)
		}
		g.Approved[i] = b
	}
	return g, nil
}

// Resolve turns a payload into an approval mask of exactly total entries.
// inputFileName selects the group of an AggregatePayload by exact,
// case-sensitive match.
func Resolve(p Payload, total int, inputFileName string) ([]bool, error) {
	switch v := p.(type) {
	case FlatMask:
		if len(v) != total {
			return nil, errors.NewLengthMismatch(total, len(v))
		}
		return append([]bool(nil), v...), nil

	case GroupPayload:
		if len(v.Approved) != total {
			return nil, errors.NewLengthMismatch(total, len(v.Approved))
		}
		return append([]bool(nil), v.Approved...), nil

	case AggregatePayload:
		if inputFileName == "" {
			return nil, errors.NewInvalidRequest("aggregate selections require an input file name")
		}
		for _, g := range v.Groups {
			if g.FileName == inputFileName {
				return Resolve(g, total, inputFileName)
			}
		}
		return nil, errors.NewNoMatchingGroup(inputFileName)

	default:
		return nil, errors.NewFormat("selections", fmt.Sprintf("unsupported payload %T", p))
	}
}

// ResolveFile reads the selections file at path and resolves it against
// total pulses.
func ResolveFile(path string, total int, inputFileName string) ([]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	p, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	mask, err := Resolve(p, total, inputFileName)
	if err != nil {
		return nil, annotate(err, path)
	}
	return mask, nil
}

// annotate prefixes the message of a pulse error with the file it concerns.
func annotate(err error, path string) error {
	pErr, ok := err.(*errors.PulseError)
	if !ok {
		return err
	}
	out := *pErr
	out.Message = fmt.Sprintf("%s: %s", path, pErr.Message)
	details := map[string]any{"source": path}
	for k, v := range pErr.Details {
		details[k] = v
	}
	out.Details = details
	return &out
}

type groupRecord struct {
	FileName string        `json:"file_name"`
	Pulses   []approvedRec `json:"pulses"`
}

type approvedRec struct {
	Approved bool `json:"approved"`
}

// EncodeGroup renders mask in the single-group shape.
func EncodeGroup(fileName string, mask []bool) ([]byte, error) {
	rec := groupRecord{FileName: fileName, Pulses: make([]approvedRec, len(mask))}
	for i, ok := range mask {
		rec.Pulses[i].Approved = ok
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
