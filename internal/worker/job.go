package worker

import "github.com/opswatchhq/engine/pkg/types"

// Job asks the pool to probe one target and deliver the result on the
// owning cycle's reply channel.
type Job struct {
	Target  types.Target
	Results chan<- types.ProbeResult
}
