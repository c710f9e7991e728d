/*
Package audit records and verifies the audit trail of a run.

A Journal stamps every record with a monotonically increasing sequence id, the
UTC wall time and the session identity, then fans it out to sinks such as a
JSON-lines file or an in-memory Recorder.

Verify reads a JSON-lines trail back and checks, after the fact, that every planned
trigger was executed and that every injected response respected its observation.
*/
package audit
