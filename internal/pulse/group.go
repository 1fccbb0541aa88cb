package pulse

import (
	"fmt"

	"github.com/hpungsan/pulsekit/internal/errors"
)

// Item is a pulse paired with its approval flag.
// Index is the position of the pulse in the pulses file it was decoded from.
type Item struct {
	Pulse    Pulse
	Approved bool
	Index    int
}

// Group is every pulse decoded from one pulses file with its approval state.
// Total is the number of pulses in the file; it can exceed len(Items) when
// rejected pulses were dropped on load.
type Group struct {
	FileName string
	Total    int
	Items    []Item
}

// NewGroup builds a group in which every pulse is approved.
func NewGroup(fileName string, pulses []Pulse) *Group {
	items := make([]Item, len(pulses))
	for i, p := range pulses {
		items[i] = Item{Pulse: p, Approved: true, Index: i}
	}
	return &Group{FileName: fileName, Total: len(pulses), Items: items}
}

// Len returns the number of items held by the group.
func (g *Group) Len() int { return len(g.Items) }

// SetApproved sets the approval flag of the item at position i.
func (g *Group) SetApproved(i int, approved bool) error {
	if i < 0 || i >= len(g.Items) {
		return errors.NewInvalidRequest(fmt.Sprintf("%s: pulse index %d out of range [0, %d)", g.FileName, i, len(g.Items)))
	}
	g.Items[i].Approved = approved
	return nil
}

// Approved returns the approved pulses in item order.
func (g *Group) Approved() []Pulse {
	out := make([]Pulse, 0, len(g.Items))
	for _, it := range g.Items {
		if it.Approved {
			out = append(out, it.Pulse)
		}
	}
	return out
}

// ApprovedCount returns the number of approved items.
func (g *Group) ApprovedCount() int {
	n := 0
	for _, it := range g.Items {
		if it.Approved {
			n++
		}
	}
	return n
}

// Mask returns the approval mask aligned with the pulses file: one entry per
// original pulse, false for pulses the group no longer holds.
func (g *Group) Mask() []bool {
	total := g.Total
	for _, it := range g.Items {
		if it.Index >= total {
			total = it.Index + 1
		}
	}
	mask := make([]bool, total)
	for _, it := range g.Items {
		mask[it.Index] = it.Approved
	}
	return mask
}

// ApplyMask returns the items whose mask entry is true, each forced to approved.
func ApplyMask(items []Item, mask []bool) ([]Item, error) {
	if len(items) != len(mask) {
		return nil, errors.NewLengthMismatch(len(items), len(mask))
	}
	out := make([]Item, 0, len(items))
	for i, it := range items {
		if mask[i] {
			it.Approved = true
			out = append(out, it)
		}
	}
	return out, nil
}
