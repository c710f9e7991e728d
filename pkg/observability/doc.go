/*
Package observability turns the audit stream into Prometheus metrics.

Metrics is an audit sink: combine it with the JSON-lines journal through
audit.Multi and every trigger, responder verdict and phase record is counted
as it is written.
*/
package observability
