/*
Package sim runs tasks without a human participant.

A Responder answers Observations on behalf of a subject. Its answers are never
trusted: the Adapter validates every Action against the Observation under a
run-scoped policy (strict, warn or coerce) and returns the only representation
the phase engine may act on. Every verdict is written to the audit trail as a
sim_action record.

Context bundles the run configuration, the session, the responder and the
adapter, and is passed explicitly to the phase engine.
*/
package sim
