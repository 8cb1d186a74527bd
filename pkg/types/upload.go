package types

import "fmt"

// UploadUnit is one deliverable piece of a payload: the whole payload when it
// fits under the unit size limit (index 0), or one contiguous chunk of a
// larger payload (indices 1..N in payload order).
type UploadUnit struct {
	Source string `json:"source" yaml:"source"`
	Index  int    `json:"index" yaml:"index"`
	Data   []byte `json:"-" yaml:"-"`
	Size   int    `json:"size" yaml:"size"`
}

// Name renders the unit's logical name: the source itself for a single-unit
// payload, or source.chunkN for chunk N.
func (u UploadUnit) Name() string {
	if u.Index == 0 {
		return u.Source
	}
	return fmt.Sprintf("%s.chunk%d", u.Source, u.Index)
}

// AttemptRecord captures one delivery attempt for one UploadUnit. Attempt
// numbers are 1-based. StatusCode is zero when the attempt failed at the
// transport layer.
type AttemptRecord struct {
	Attempt    int     `json:"attempt"`
	Outcome    Outcome `json:"outcome"`
	StatusCode int     `json:"status_code,omitempty"`
	Detail     string  `json:"detail,omitempty"`
}

// Success reports whether the attempt was accepted by the destination.
func (a AttemptRecord) Success() bool {
	return a.Outcome == OutcomeSuccess
}
