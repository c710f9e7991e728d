package ports

import "github.com/aretw0/trialkit/pkg/domain"

// AuditSink receives audit records. Implementations must not fail the caller:
// the audit trail is best-effort from the runtime's point of view.
type AuditSink interface {
	Log(rec domain.Record)
}
