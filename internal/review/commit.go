package review

import "github.com/lehigh-university-libraries/labeler/internal/models"

// CommitPlan is a copy of everything a commit sends, captured when the
// commit starts so no network call runs under the session lock.
type CommitPlan struct {
	Crop          models.Crop
	LabelerName   string
	Difficult     bool
	Incoming      models.Metadata
	Matched       models.Metadata
	IncomingDirty bool
	MatchedDirty  bool
}

// Dirty reports the dirty flag captured for target.
func (p CommitPlan) Dirty(target Target) bool {
	switch target {
	case TargetIncoming:
		return p.IncomingDirty
	case TargetMatched:
		return p.MatchedDirty
	default:
		return false
	}
}

// Record returns the record captured for target.
func (p CommitPlan) Record(target Target) models.Metadata {
	if target == TargetMatched {
		return p.Matched
	}
	return p.Incoming
}

// BeginCommit moves a ready session to committing and returns its plan.
func (s *Session) BeginCommit() (CommitPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
	case StateCommitting, StatePersisting:
		return CommitPlan{}, ErrCommitInFlight
	case StateClosed:
		return CommitPlan{}, ErrClosed
	default:
		return CommitPlan{}, ErrNotReady
	}

	plan := CommitPlan{
		Crop:          s.crop,
		LabelerName:   s.labelerName,
		Difficult:     s.difficult,
		Incoming:      s.records[TargetIncoming].live.Clone(),
		Matched:       s.records[TargetMatched].live.Clone(),
		IncomingDirty: s.isDirty(TargetIncoming),
		MatchedDirty:  s.isDirty(TargetMatched),
	}
	s.state = StateCommitting
	return plan, nil
}

// EndCommit settles a commit started with BeginCommit. A nil error closes
// the session; any other error returns it to ready with edits intact.
func (s *Session) EndCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCommitting {
		return
	}
	if err != nil {
		s.state = StateReady
		return
	}
	s.close()
}

// BeginPersist reserves a ready session for an add or remove, so no commit
// or edit can run until EndPersist.
func (s *Session) BeginPersist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
		s.state = StatePersisting
		return nil
	case StateCommitting, StatePersisting:
		return ErrCommitInFlight
	case StateClosed:
		return ErrClosed
	default:
		return ErrNotReady
	}
}

// EndPersist returns a persisting session to ready.
func (s *Session) EndPersist() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StatePersisting {
		s.state = StateReady
	}
}

// AttachRecord stores a record identifier on the live incoming record and
// updates the provenance tag to match.
func (s *Session) AttachRecord(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrClosed
	}
	s.records[TargetIncoming].live.EmbeddingID = id
	if id != "" {
		s.provenance = models.ProvenanceDatabase
	} else {
		s.provenance = s.seeded
	}
	return nil
}

// DetachRecord clears the incoming record identifier, returning the record
// to the not-yet-persisted state.
func (s *Session) DetachRecord() error {
	return s.AttachRecord("")
}

// View is a read-only projection of the session for display binding.
type View struct {
	State             string            `json:"state"`
	Crop              models.Crop       `json:"crop"`
	CropURI           string            `json:"crop_s3_uri"`
	CropPresignedURL  string            `json:"crop_presigned_url"`
	MatchURI          string            `json:"similar_crop_s3_uri"`
	MatchPresignedURL *string           `json:"similar_crop_presigned_url"`
	Score             *float64          `json:"score"`
	Incoming          models.Metadata   `json:"incoming_crop_metadata"`
	Matched           models.Metadata   `json:"similar_crop_metadata"`
	IncomingDirty     bool              `json:"incoming_dirty"`
	MatchedDirty      bool              `json:"similar_dirty"`
	Provenance        models.Provenance `json:"provenance"`
	ProvenanceLabel   string            `json:"provenance_label"`
	LabelerName       string            `json:"labeler_name"`
	Difficult         bool              `json:"difficult"`
	EmbeddingID       string            `json:"embedding_id"`
}

// View returns the current observable state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:             s.state.String(),
		Crop:              s.crop,
		CropURI:           s.cropURI,
		CropPresignedURL:  s.cropPresignedURL,
		MatchURI:          s.matchURI,
		MatchPresignedURL: s.matchPresigned,
		Score:             s.score,
		Provenance:        s.provenance,
		ProvenanceLabel:   s.provenance.Label(),
		LabelerName:       s.labelerName,
		Difficult:         s.difficult,
	}
	if r, ok := s.records[TargetIncoming]; ok {
		v.Incoming = r.live.Clone()
		v.IncomingDirty = s.isDirty(TargetIncoming)
		v.EmbeddingID = r.live.EmbeddingID
	}
	if r, ok := s.records[TargetMatched]; ok {
		v.Matched = r.live.Clone()
		v.MatchedDirty = s.isDirty(TargetMatched)
	}
	return v
}
