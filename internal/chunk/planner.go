// Package chunk splits an oversized payload into bounded, independently
// retriable upload units. Units are contiguous byte ranges; concatenating
// them in sequence order reconstructs the payload exactly.
package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/opswatchhq/engine/pkg/types"
)

// DefaultMaxUnitSize bounds a single upload unit to 1 MiB.
const DefaultMaxUnitSize = 1 << 20

// Planner lazily materializes upload units from a payload stream, one unit
// at a time, so a large payload is never buffered beyond the current unit.
//
// A payload that fits in one unit is emitted with index 0; a larger payload
// is split into units of exactly the maximum size except the final one, with
// indices starting at 1. An empty payload yields one empty unit, index 0.
type Planner struct {
	source string
	r      io.Reader
	max    int

	index   int
	started bool
	done    bool
	carry   []byte
}

// NewPlanner builds a Planner over the payload stream. A non-positive
// maxUnitSize falls back to DefaultMaxUnitSize.
func NewPlanner(source string, r io.Reader, maxUnitSize int) *Planner {
	if maxUnitSize <= 0 {
		maxUnitSize = DefaultMaxUnitSize
	}
	return &Planner{source: source, r: r, max: maxUnitSize}
}

// Next returns the next upload unit in payload order. The boolean is false
// once the payload is exhausted.
func (p *Planner) Next() (types.UploadUnit, bool, error) {
	if p.done {
		return types.UploadUnit{}, false, nil
	}

	buf := make([]byte, p.max)
	n := copy(buf, p.carry)
	p.carry = nil

	read, err := io.ReadFull(p.r, buf[n:])
	n += read
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		p.done = true
		return types.UploadUnit{}, false, fmt.Errorf("read payload %q: %w", p.source, err)
	}

	// A full unit may also be the last one; peek a single byte so the
	// single-unit case keeps index 0.
	if n == p.max && err == nil {
		if perr := p.peek(); perr != nil {
			p.done = true
			return types.UploadUnit{}, false, fmt.Errorf("read payload %q: %w", p.source, perr)
		}
	}

	if !p.started {
		p.started = true
		if len(p.carry) > 0 {
			p.index = 1
		}
	}

	unit := types.UploadUnit{
		Source: p.source,
		Index:  p.index,
		Data:   buf[:n],
		Size:   n,
	}
	if len(p.carry) == 0 {
		p.done = true
	} else {
		p.index++
	}
	return unit, true, nil
}

func (p *Planner) peek() error {
	one := make([]byte, 1)
	for {
		n, err := p.r.Read(one)
		if n > 0 {
			p.carry = one[:n]
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// PlanBytes materializes the full unit sequence for an in-memory payload.
func PlanBytes(source string, payload []byte, maxUnitSize int) ([]types.UploadUnit, error) {
	planner := NewPlanner(source, bytes.NewReader(payload), maxUnitSize)
	var units []types.UploadUnit
	for {
		unit, ok, err := planner.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return units, nil
		}
		units = append(units, unit)
	}
}
