package harvester

import "sync/atomic"

// Stats counts what a run did. Counters are safe for concurrent use.
type Stats struct {
	Customers       atomic.Int64
	SubContractors  atomic.Int64
	InHouseProjects atomic.Int64
	FilesWritten    atomic.Int64
	TextDumps       atomic.Int64
	SkippedDirs     atomic.Int64
	EmptyResponses  atomic.Int64
}

// Fields returns the counters as log fields
func (s *Stats) Fields() map[string]interface{} {
	return map[string]interface{}{
		"customers":         s.Customers.Load(),
		"sub_contractors":   s.SubContractors.Load(),
		"in_house_projects": s.InHouseProjects.Load(),
		"files_written":     s.FilesWritten.Load(),
		"text_dumps":        s.TextDumps.Load(),
		"skipped_dirs":      s.SkippedDirs.Load(),
		"empty_responses":   s.EmptyResponses.Load(),
	}
}
