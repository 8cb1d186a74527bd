package chunk

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func payloadOf(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}
	return payload
}

func TestPlanBytesSmallPayloadIsSingleUnit(t *testing.T) {
	payload := payloadOf(100)
	units, err := PlanBytes("app.log", payload, 1024)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("expected one unit, got %d", len(units))
	}
	if units[0].Index != 0 {
		t.Fatalf("single unit must carry index 0, got %d", units[0].Index)
	}
	if units[0].Size != 100 || !bytes.Equal(units[0].Data, payload) {
		t.Fatalf("unit does not match payload")
	}
}

func TestPlanBytesExactFitStaysSingle(t *testing.T) {
	units, err := PlanBytes("app.log", payloadOf(1024), 1024)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(units) != 1 || units[0].Index != 0 {
		t.Fatalf("payload equal to the limit must stay a single unit: %+v", units)
	}
}

func TestPlanBytesEmptyPayload(t *testing.T) {
	units, err := PlanBytes("empty.log", nil, 1024)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("empty payload plans to exactly one unit, got %d", len(units))
	}
	if units[0].Index != 0 || units[0].Size != 0 {
		t.Fatalf("expected one empty unit with index 0, got %+v", units[0])
	}
}

func TestPlanBytesChunksLargePayload(t *testing.T) {
	const max = 1024
	payload := payloadOf(max*2 + max/2) // 2.5 units

	units, err := PlanBytes("access.log", payload, max)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	for i, unit := range units {
		if unit.Index != i+1 {
			t.Fatalf("chunk indices start at 1: unit %d has index %d", i, unit.Index)
		}
	}
	if units[0].Size != max || units[1].Size != max || units[2].Size != max/2 {
		t.Fatalf("unexpected sizes: %d %d %d", units[0].Size, units[1].Size, units[2].Size)
	}
}

func TestPlanRoundTrip(t *testing.T) {
	const max = 64
	for _, size := range []int{0, 1, max - 1, max, max + 1, 3 * max, 3*max + 7} {
		payload := payloadOf(size)
		units, err := PlanBytes("roundtrip.log", payload, max)
		if err != nil {
			t.Fatalf("plan size %d: %v", size, err)
		}

		var rebuilt []byte
		total := 0
		for _, unit := range units {
			rebuilt = append(rebuilt, unit.Data...)
			total += unit.Size
		}
		if total != size {
			t.Fatalf("size %d: unit sizes sum to %d", size, total)
		}
		if !bytes.Equal(rebuilt, payload) {
			t.Fatalf("size %d: concatenated units differ from payload", size)
		}
	}
}

func TestPlannerIsLazy(t *testing.T) {
	const max = 8
	src := &countingReader{r: bytes.NewReader(payloadOf(max * 4))}
	planner := NewPlanner("lazy.log", src, max)

	unit, ok, err := planner.Next()
	if err != nil || !ok {
		t.Fatalf("first unit: ok=%v err=%v", ok, err)
	}
	if unit.Size != max {
		t.Fatalf("expected full first unit, got %d bytes", unit.Size)
	}
	// One unit plus a single peeked byte is the most that may be buffered.
	if src.read > max+1 {
		t.Fatalf("planner read %d bytes for one %d-byte unit", src.read, max)
	}
}

func TestPlannerPropagatesReadErrors(t *testing.T) {
	broken := io.MultiReader(bytes.NewReader(payloadOf(4)), &failingReader{})
	planner := NewPlanner("broken.log", broken, 16)

	_, ok, err := planner.Next()
	if ok || err == nil {
		t.Fatalf("expected read error, got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := planner.Next(); ok {
		t.Fatalf("planner must stay exhausted after an error")
	}
}

type countingReader struct {
	r    io.Reader
	read int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	return n, err
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("disk gone")
}
