package simulation

import (
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/spawnpool/pkg/pool"
)

// Report summarizes a simulation run.
type Report struct {
	Name       string            `json:"name"`
	Frames     int               `json:"frames"`
	Prototypes []PrototypeReport `json:"prototypes"`

	// PeakActive is the most instances handed out at the end of any frame
	PeakActive int `json:"peak_active"`
	// ActiveAtEnd is the number of instances still handed out after the
	// last frame, before disposal
	ActiveAtEnd int `json:"active_at_end"`
	// AliveNodes counts scene nodes, root and prototypes included, before
	// disposal
	AliveNodes int `json:"alive_nodes"`
	// AliveAfterDispose counts scene nodes left after disposal
	AliveAfterDispose int `json:"alive_after_dispose"`

	FrameP50 time.Duration `json:"frame_p50_ns"`
	FrameP99 time.Duration `json:"frame_p99_ns"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	RSSBytes uint64        `json:"rss_bytes"`
}

// PrototypeReport is the per-prototype part of a Report.
type PrototypeReport struct {
	Name     string     `json:"name"`
	Spawned  int        `json:"spawned"`
	Returned int        `json:"returned"`
	Stats    pool.Stats `json:"stats"`
}

// ReuseRatio returns hits / (hits + misses), or 0 before any acquire.
func (p PrototypeReport) ReuseRatio() float64 {
	total := p.Stats.Hits + p.Stats.Misses
	if total == 0 {
		return 0
	}
	return float64(p.Stats.Hits) / float64(total)
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
