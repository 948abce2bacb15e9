package pool

// Stats is a point-in-time snapshot of a pool.
type Stats struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	// Idle is the number of instances in the free list.
	Idle int `json:"idle"`
	// Watched is the number of loans with a pending watcher.
	Watched int `json:"watched"`

	Acquired    uint64 `json:"acquired"`
	Constructed uint64 `json:"constructed"`
	Reused      uint64 `json:"reused"`
	Recycled    uint64 `json:"recycled"`
	Discarded   uint64 `json:"discarded"`
	// Duplicates counts releases ignored because the instance was already idle.
	Duplicates uint64 `json:"duplicates"`
	// Stale counts releases ignored because their cycle id was outdated.
	Stale              uint64 `json:"stale"`
	ContractViolations uint64 `json:"contract_violations"`
}

// HitRate returns the fraction of acquisitions served from the free list.
func (s Stats) HitRate() float64 {
	if s.Acquired == 0 {
		return 0
	}
	return float64(s.Reused) / float64(s.Acquired)
}
