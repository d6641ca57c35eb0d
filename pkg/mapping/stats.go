package mapping

import "github.com/appenmapper/appenmapper/pkg/identifier"

// Stats describes how the target dataset matched the master. It is computed
// from the match mask before any cell is filled.
type Stats struct {
	TotalRows          int `json:"total_rows_file2"`
	UniqueIDs          int `json:"unique_ids_file2"`
	MatchedRows        int `json:"total_mapped_rows"`
	UnmatchedRows      int `json:"total_unmapped_rows"`
	MatchedUniqueIDs   int `json:"unique_ids_mapped"`
	UnmatchedUniqueIDs int `json:"unique_ids_unmapped"`
}

// Counter is one labeled statistic, in display order.
type Counter struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Counters returns the statistics as labeled counters, grouped the way the
// summary screen shows them: totals, matched, unmatched.
func (s Stats) Counters() []Counter {
	return []Counter{
		{Key: "total_rows_file2", Label: "File 2 – Total Records", Value: s.TotalRows},
		{Key: "unique_ids_file2", Label: "File 2 – Unique Customers", Value: s.UniqueIDs},
		{Key: "total_mapped_rows", Label: "Mapped Rows", Value: s.MatchedRows},
		{Key: "unique_ids_mapped", Label: "Mapped Unique Customers", Value: s.MatchedUniqueIDs},
		{Key: "total_unmapped_rows", Label: "Unmapped Rows", Value: s.UnmatchedRows},
		{Key: "unique_ids_unmapped", Label: "Unmapped Unique Customers", Value: s.UnmatchedUniqueIDs},
	}
}

// computeStats counts rows and distinct identifiers per match status.
// Empty identifiers count as rows but never as distinct identifiers.
func computeStats(ids []identifier.ID, matched []bool) Stats {
	all := make(map[identifier.ID]struct{})
	hit := make(map[identifier.ID]struct{})
	miss := make(map[identifier.ID]struct{})

	var s Stats
	s.TotalRows = len(ids)
	for i, id := range ids {
		if matched[i] {
			s.MatchedRows++
		}
		if id.IsEmpty() {
			continue
		}
		all[id] = struct{}{}
		if matched[i] {
			hit[id] = struct{}{}
		} else {
			miss[id] = struct{}{}
		}
	}
	s.UnmatchedRows = s.TotalRows - s.MatchedRows
	s.UniqueIDs = len(all)
	s.MatchedUniqueIDs = len(hit)
	s.UnmatchedUniqueIDs = len(miss)
	return s
}
