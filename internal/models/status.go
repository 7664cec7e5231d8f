package models

// SystemStatus summarizes the corpus, its projections and the ingest backlog.
type SystemStatus struct {
	Tenders        int64            `json:"tenders"`
	Documents      int64            `json:"documents"`
	Clauses        int64            `json:"clauses"`
	Chunks         int64            `json:"chunks"`
	Dimension      int              `json:"embedding_dimension"`
	GraphNodes     int              `json:"graph_nodes"`
	KeywordDocs    uint64           `json:"keyword_docs"`
	PendingIngests int              `json:"pending_ingests"`
	DiskUsage      map[string]int64 `json:"disk_usage,omitempty"`
	DiskUsageTotal int64            `json:"disk_usage_bytes"`
}

// ProjectionLag is the number of committed clauses missing from the graph store.
func (s *SystemStatus) ProjectionLag() int64 {
	lag := s.Clauses - int64(s.GraphNodes)
	if lag < 0 {
		return 0
	}
	return lag
}
