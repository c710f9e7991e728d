package audit

import (
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/ports"
)

// Journal is the run's audit sink. It is a single-owner object used from the
// phase loop only, so it does no locking.
type Journal struct {
	seq     uint64
	session *domain.SessionInfo
	now     func() time.Time
	sinks   []ports.AuditSink
}

// Option configures the Journal.
type Option func(*Journal)

// WithSession tags every record with the session identity.
func WithSession(session domain.SessionInfo) Option {
	return func(j *Journal) {
		s := session
		j.session = &s
	}
}

// WithClock overrides the wall clock used for t_utc.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) {
		j.now = now
	}
}

// WithSink adds a destination for stamped records.
func WithSink(sink ports.AuditSink) Option {
	return func(j *Journal) {
		if sink != nil {
			j.sinks = append(j.sinks, sink)
		}
	}
}

// NewJournal creates a Journal. Without sinks it only numbers records.
func NewJournal(opts ...Option) *Journal {
	j := &Journal{now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Log stamps the record header and forwards it to every sink.
func (j *Journal) Log(rec domain.Record) {
	if rec == nil {
		return
	}
	j.seq++
	h := rec.Header()
	h.Seq = j.seq
	h.TUTC = j.now().UTC()
	if h.Session == nil {
		h.Session = j.session
	}
	for _, sink := range j.sinks {
		sink.Log(rec)
	}
}

// Seq returns the last sequence id handed out.
func (j *Journal) Seq() uint64 {
	return j.seq
}

// Multi fans records out to several sinks without stamping them.
type Multi []ports.AuditSink

// Log implements ports.AuditSink.
func (m Multi) Log(rec domain.Record) {
	for _, sink := range m {
		if sink != nil {
			sink.Log(rec)
		}
	}
}

// Discard drops every record.
var Discard ports.AuditSink = discard{}

type discard struct{}

func (discard) Log(domain.Record) {}
