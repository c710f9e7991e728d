package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/trialkit/pkg/domain"
)

// Issue is one finding of Verify.
type Issue struct {
	Seq     uint64
	Kind    string
	Message string
}

// Report summarizes an audit trail.
type Report struct {
	Records           int
	Planned           int
	Executed          int
	Skipped           int
	CapabilityMissing int
	SendErrors        int
	Actions           int
	Statuses          map[domain.ValidationStatus]int
	Reasons           map[domain.ReasonCode]int
	ObsWarnings       int
	Issues            []Issue
}

// OK reports whether the trail has no issues.
func (r Report) OK() bool {
	return len(r.Issues) == 0
}

const (
	IssueUnexecuted = "unexecuted_trigger"
	IssueOrphan     = "orphan_execution"
	IssueOrder      = "out_of_order"
	IssueKey        = "invalid_used_key"
	IssueRT         = "rt_out_of_bounds"
	IssueSeq        = "non_monotonic_seq"
)

// Verify checks a decoded trail:
// every trigger_planned has exactly one trigger_executed with the same emit_id that
// follows it, and every accepted sim_action respects its observation.
func Verify(entries []Entry) Report {
	rep := Report{
		Records:  len(entries),
		Statuses: map[domain.ValidationStatus]int{},
		Reasons:  map[domain.ReasonCode]int{},
	}
	planned := map[string]Entry{}
	executed := map[string]bool{}
	var lastSeq float64
	for _, e := range entries {
		seq, _ := e.Number("seq")
		if seq <= lastSeq {
			rep.issue(seq, IssueSeq, fmt.Sprintf("seq %v does not follow %v", seq, lastSeq))
		}
		lastSeq = seq
		switch e.Type() {
		case domain.RecordTriggerPlanned:
			rep.Planned++
			planned[emitKey(e)] = e
		case domain.RecordTriggerExecuted:
			rep.Executed++
			key := emitKey(e)
			p, ok := planned[key]
			if !ok {
				rep.issue(seq, IssueOrphan, fmt.Sprintf("emit %s executed without a plan", key))
				continue
			}
			executed[key] = true
			tp, _ := p.Number("t_planned")
			ts, _ := e.Number("t_sent")
			if ts < tp {
				rep.issue(seq, IssueOrder, fmt.Sprintf("emit %s sent at %.6f before planned at %.6f", key, ts, tp))
			}
			if msg, _ := e["error"].(string); msg != "" {
				rep.SendErrors++
			}
		case domain.RecordTriggerSkipped:
			rep.Skipped++
		case domain.RecordTriggerCapabilityMissing:
			rep.CapabilityMissing++
		case domain.RecordSimObservationWarning:
			rep.ObsWarnings++
		case domain.RecordSimAction:
			rep.Actions++
			rep.checkAction(seq, e)
		}
	}
	var missing []string
	for key := range planned {
		if !executed[key] {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	for _, key := range missing {
		seq, _ := planned[key].Number("seq")
		rep.issue(seq, IssueUnexecuted, fmt.Sprintf("emit %s planned but never executed", key))
	}
	return rep
}

func (r *Report) checkAction(seq float64, e Entry) {
	v := e.Object("validation")
	status := domain.ValidationStatus(fmt.Sprint(v["status"]))
	r.Statuses[status]++
	if reason, _ := v["reason"].(string); reason != "" {
		r.Reasons[domain.ReasonCode(reason)]++
	}
	if status != domain.StatusOK && status != domain.StatusCoerced {
		return
	}
	used := e.Object("used_action")
	key, _ := used["key"].(string)
	if key == "" {
		return
	}
	obs := e.Object("obs")
	valid, _ := obs["valid_keys"].([]any)
	found := false
	for _, k := range valid {
		if k == key {
			found = true
			break
		}
	}
	if !found {
		r.issue(seq, IssueKey, fmt.Sprintf("used key %q not in valid keys", key))
	}
	rt, ok := used.Number("rt_s")
	if !ok {
		return
	}
	limit, bounded := obs.Number("deadline_s")
	if !bounded {
		limit, bounded = obs.Number("response_window_s")
	}
	if rt < 0 || (bounded && rt > limit) {
		r.issue(seq, IssueRT, fmt.Sprintf("used rt %.3fs outside [0, %.3fs]", rt, limit))
	}
}

func (r *Report) issue(seq float64, kind, msg string) {
	r.Issues = append(r.Issues, Issue{Seq: uint64(seq), Kind: kind, Message: msg})
}

func emitKey(e Entry) string {
	return fmt.Sprint(e["emit_id"])
}

// Markdown renders the report for terminal display.
func (r Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Audit report\n\n")
	if r.OK() {
		b.WriteString("**Verdict:** clean\n\n")
	} else {
		fmt.Fprintf(&b, "**Verdict:** %d issue(s)\n\n", len(r.Issues))
	}
	b.WriteString("| Metric | Count |\n|---|---|\n")
	fmt.Fprintf(&b, "| records | %d |\n", r.Records)
	fmt.Fprintf(&b, "| triggers planned | %d |\n", r.Planned)
	fmt.Fprintf(&b, "| triggers executed | %d |\n", r.Executed)
	fmt.Fprintf(&b, "| send errors | %d |\n", r.SendErrors)
	fmt.Fprintf(&b, "| skipped | %d |\n", r.Skipped)
	fmt.Fprintf(&b, "| capability gaps | %d |\n", r.CapabilityMissing)
	fmt.Fprintf(&b, "| responder actions | %d |\n", r.Actions)
	fmt.Fprintf(&b, "| observation warnings | %d |\n", r.ObsWarnings)
	for _, st := range []domain.ValidationStatus{domain.StatusOK, domain.StatusCoerced, domain.StatusRejected, domain.StatusError} {
		fmt.Fprintf(&b, "| %s | %d |\n", st, r.Statuses[st])
	}
	if len(r.Reasons) > 0 {
		b.WriteString("\n## Reasons\n\n")
		codes := make([]string, 0, len(r.Reasons))
		for code := range r.Reasons {
			codes = append(codes, string(code))
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Fprintf(&b, "- `%s`: %d\n", code, r.Reasons[domain.ReasonCode(code)])
		}
	}
	if len(r.Issues) > 0 {
		b.WriteString("\n## Issues\n\n")
		for _, is := range r.Issues {
			fmt.Fprintf(&b, "- seq %d `%s`: %s\n", is.Seq, is.Kind, is.Message)
		}
	}
	return b.String()
}
