package review

import "github.com/lehigh-university-libraries/labeler/internal/models"

// Resolve decides the initial incoming record and its provenance.
//
// A non-empty queue record is used as is. Otherwise the matched record is
// copied without its pick point, since a spatial annotation on the neighbor
// says nothing about this crop. A non-empty recordID marks the record as
// already in the database, which takes precedence as the provenance tag but
// does not change which fields seeded it.
func Resolve(incoming, matched models.Metadata, recordID string) (models.Metadata, models.Provenance) {
	var (
		resolved   models.Metadata
		provenance models.Provenance
	)

	if !incoming.IsEmpty() {
		resolved = incoming.Clone()
		provenance = models.ProvenanceQueue
	} else {
		resolved = matched.Clone()
		resolved.PickPoint = ""
		provenance = models.ProvenanceMatch
	}

	// the identifier belongs to this crop's row, never the neighbor's
	resolved.EmbeddingID = recordID
	if recordID != "" {
		provenance = models.ProvenanceDatabase
	}

	return resolved, provenance
}
