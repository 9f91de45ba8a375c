package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/roach88/nestcheck/internal/checklist"
	"github.com/roach88/nestcheck/internal/store"
	"github.com/roach88/nestcheck/internal/workflow"
)

// SessionView is the JSON form of a session.
type SessionView struct {
	ID          int64      `json:"id"`
	OrderNo     string     `json:"order_no"`
	Operator    string     `json:"operator"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func sessionView(s *store.Session) SessionView {
	return SessionView{
		ID:          s.ID,
		OrderNo:     s.OrderNo,
		Operator:    s.OperatorName,
		Status:      string(s.Status),
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
	}
}

// StepView is the JSON form of a step.
type StepView struct {
	ID          int64  `json:"id"`
	Ref         string `json:"ref"`
	Block       string `json:"block,omitempty"`
	Text        string `json:"text"`
	Hint        string `json:"hint,omitempty"`
	Critical    bool   `json:"critical"`
	Status      string `json:"status"`
	Note        string `json:"note,omitempty"`
	DurationSec *int64 `json:"duration_sec,omitempty"`
	OverrideBy  string `json:"override_by,omitempty"`
}

func stepRef(st *store.Step) string {
	return fmt.Sprintf("%d.%d", st.BlockIndex+1, st.ItemIndex+1)
}

func stepView(def *checklist.Definition, st *store.Step) StepView {
	v := StepView{
		ID:          st.ID,
		Ref:         stepRef(st),
		Block:       def.BlockTitle(st.BlockIndex),
		Text:        st.Text,
		Hint:        st.Hint,
		Critical:    st.Critical,
		Status:      string(st.Status),
		Note:        st.Note,
		DurationSec: st.DurationSec,
	}
	if st.OverrideByMaster {
		v.OverrideBy = st.OverrideMasterName
	}
	return v
}

// ProgressView is the JSON form of workflow.Progress.
type ProgressView struct {
	Done       int     `json:"done"`
	Failed     int     `json:"failed"`
	InProgress int     `json:"in_progress"`
	Total      int     `json:"total"`
	Percent    float64 `json:"percent"`
}

func progressView(p workflow.Progress) ProgressView {
	return ProgressView{
		Done:       p.Done,
		Failed:     p.Failed,
		InProgress: p.InProgress,
		Total:      p.Total,
		Percent:    p.Percent(),
	}
}

func printSession(w io.Writer, s SessionView) {
	status := s.Status
	if s.Status == string(store.SessionActive) {
		status = color.New(color.FgHiGreen).Sprint(status)
	} else {
		status = color.New(color.FgHiBlack).Sprint(status)
	}
	fmt.Fprintf(w, "Session %d  order %s  operator %s  [%s]\n", s.ID, s.OrderNo, s.Operator, status)
}

func printProgress(w io.Writer, p ProgressView) {
	fmt.Fprintf(w, "Progress: %d/%d done, %d failed, %d in progress (%.0f%%)\n",
		p.Done, p.Total, p.Failed, p.InProgress, p.Percent)
}

func printStep(w io.Writer, v StepView) {
	line := fmt.Sprintf("  %s %-5s %s", statusGlyph(store.StepStatus(v.Status)), v.Ref, v.Text)
	if v.Critical {
		line += color.New(color.FgRed).Sprint(" [critical]")
	}
	fmt.Fprintf(w, "%s  (#%d)\n", line, v.ID)
	if v.OverrideBy != "" {
		fmt.Fprintf(w, "        override: %s\n", v.OverrideBy)
	}
	if v.Note != "" {
		fmt.Fprintf(w, "        note: %s\n", v.Note)
	}
}

// printSteps prints steps grouped under their block titles.
func printSteps(w io.Writer, steps []StepView) {
	block := ""
	for i, v := range steps {
		if i == 0 || v.Block != block {
			block = v.Block
			title := block
			if title == "" {
				title = "Block " + strings.SplitN(v.Ref, ".", 2)[0]
			}
			fmt.Fprintln(w, color.New(color.Bold).Sprint(title))
		}
		printStep(w, v)
	}
}

// resolveStep finds the step named by ref: either its ID ("12" or "#12") or
// its checklist position ("2.1" is the first item of the second block).
func resolveStep(ref string, steps []*store.Step) (*store.Step, error) {
	ref = strings.TrimSpace(ref)
	if b, i, ok := strings.Cut(ref, "."); ok {
		bi, err1 := strconv.Atoi(b)
		ii, err2 := strconv.Atoi(i)
		if err1 != nil || err2 != nil {
			return nil, &workflow.ValidationError{Field: "step", Message: fmt.Sprintf("%q is not a step reference", ref)}
		}
		for _, st := range steps {
			if st.BlockIndex == bi-1 && st.ItemIndex == ii-1 {
				return st, nil
			}
		}
		return nil, &workflow.ValidationError{Field: "step", Message: fmt.Sprintf("no step at %s", ref)}
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(ref, "#"), 10, 64)
	if err != nil {
		return nil, &workflow.ValidationError{Field: "step", Message: fmt.Sprintf("%q is not a step reference", ref)}
	}
	for _, st := range steps {
		if st.ID == id {
			return st, nil
		}
	}
	return nil, &workflow.ValidationError{Field: "step", Message: fmt.Sprintf("step #%d is not part of this session", id)}
}
