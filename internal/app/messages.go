package app

import (
	"fmt"
	"time"
)

// GroupStartMsg announces that a group's samples are about to be submitted.
type GroupStartMsg struct {
	Site  string
	Group string
	Total int
}

// SampleMsg reports one completed sample invocation.
type SampleMsg struct {
	Site     string
	Group    string
	FileID   string
	SampleID string
	OK       bool
	Kind     string // failure classification, empty on success
	Elapsed  time.Duration
	ErrMsg   string
}

// RunFinishedMsg signals the end of the whole cohort run.
type RunFinishedMsg struct {
	Err       error
	StartTime time.Time
	EndTime   time.Time
}

func NewGroupStart(site, group string, total int) GroupStartMsg {
	return GroupStartMsg{Site: site, Group: group, Total: total}
}

func NewSample(site, group, fileID, sampleID string, ok bool, kind string, elapsed time.Duration, errMsg string) SampleMsg {
	return SampleMsg{
		Site:     site,
		Group:    group,
		FileID:   fileID,
		SampleID: sampleID,
		OK:       ok,
		Kind:     kind,
		Elapsed:  elapsed,
		ErrMsg:   errMsg,
	}
}

func NewRunFinished(start time.Time, err error) RunFinishedMsg {
	return RunFinishedMsg{Err: err, StartTime: start, EndTime: time.Now()}
}

func (g GroupStartMsg) String() string {
	return fmt.Sprintf("GroupStart %s/%s: %d samples", g.Site, g.Group, g.Total)
}

func (s SampleMsg) String() string {
	status := "ok"
	if !s.OK {
		status = s.Kind
	}
	return fmt.Sprintf("Sample %s: %s", s.SampleID, status)
}

func (r RunFinishedMsg) String() string { return "RunFinished" }

func (r RunFinishedMsg) Error() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return ""
}
