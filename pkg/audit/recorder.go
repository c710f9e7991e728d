package audit

import (
	"github.com/aretw0/trialkit/pkg/domain"
)

// Recorder keeps records in memory, in arrival order.
type Recorder struct {
	Records []domain.Record
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Log implements ports.AuditSink.
func (r *Recorder) Log(rec domain.Record) {
	r.Records = append(r.Records, rec)
}

// OfType returns the records with the given type.
func (r *Recorder) OfType(typ domain.RecordType) []domain.Record {
	var out []domain.Record
	for _, rec := range r.Records {
		if rec.Header().Type == typ {
			out = append(out, rec)
		}
	}
	return out
}

// Types lists record types in arrival order.
func (r *Recorder) Types() []domain.RecordType {
	out := make([]domain.RecordType, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec.Header().Type
	}
	return out
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.Records = nil
}
