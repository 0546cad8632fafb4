package review

import "github.com/lehigh-university-libraries/labeler/internal/models"

// Snapshot is an immutable copy of a metadata record used for change detection.
type Snapshot struct {
	record models.Metadata
}

// NewSnapshot copies m.
func NewSnapshot(m models.Metadata) Snapshot {
	return Snapshot{record: m.Clone()}
}

// Record returns a copy of the captured record.
func (s Snapshot) Record() models.Metadata {
	return s.record.Clone()
}

// Matches reports whether live is unchanged since the snapshot was taken.
// The record identifier is ignored; add and remove persist it on their own.
func (s Snapshot) Matches(live models.Metadata) bool {
	a := s.record
	a.EmbeddingID = ""
	b := live
	b.EmbeddingID = ""
	return a.Equal(b)
}
