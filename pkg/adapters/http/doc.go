/*
Package http exposes responders over HTTP and calls remote ones.

The server wraps any ports.Responder behind a small JSON API:

	POST /act            {"session_id": "...", "obs": {...}}  -> {"key": "f", "rt_s": 0.3}
	POST /session/start  {"session": {...}}
	POST /feedback       {"trial_id": "...", "outcome": "hit", ...}
	POST /session/end
	GET  /events         server-sent stream of actions, optionally per session_id
	GET  /health
	GET  /metrics        when a Prometheus gatherer is configured

Client is the matching ports.Responder. Its output goes through the responder
adapter like any other responder, so a misbehaving remote policy cannot break
a run.
*/
package http
