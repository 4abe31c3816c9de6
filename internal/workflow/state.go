package workflow

import "repoinsight/internal/models"

// Status names one phase of the workflow.
type Status string

const (
	StatusPending         Status = "pending"
	StatusExploring       Status = "exploring"
	StatusAnalyzingIssues Status = "analyzing_issues"
	StatusCombining       Status = "combining"
	StatusDone            Status = "done"
	StatusFailed          Status = "failed"
)

// AnalysisState is the mutable record threaded through the workflow. Each
// result field is written at most once, by exactly one stage; the setters
// enforce it.
type AnalysisState struct {
	Repository models.RepoRef
	Status     Status

	structure *models.StructureResult
	activity  *models.ActivityResult
	final     *models.FinalReport
	degraded  []string
}

// NewState initializes a pending state for one run.
func NewState(ref models.RepoRef) *AnalysisState {
	return &AnalysisState{Repository: ref, Status: StatusPending}
}

// SetStructureResult records the structure stage output. Writing twice is an
// invariant violation.
func (s *AnalysisState) SetStructureResult(r *models.StructureResult) error {
	if s.structure != nil {
		return &InvariantViolationError{Msg: "structure result written twice"}
	}
	if r == nil {
		return &InvariantViolationError{Msg: "structure stage produced no result"}
	}
	s.structure = r
	return nil
}

// SetActivityResult records the activity stage output. It requires the
// structure stage to have completed first.
func (s *AnalysisState) SetActivityResult(r *models.ActivityResult) error {
	if s.structure == nil {
		return &InvariantViolationError{Msg: "activity result written before structure result"}
	}
	if s.activity != nil {
		return &InvariantViolationError{Msg: "activity result written twice"}
	}
	if r == nil {
		return &InvariantViolationError{Msg: "activity stage produced no result"}
	}
	s.activity = r
	return nil
}

// SetFinalReport records the assembled report.
func (s *AnalysisState) SetFinalReport(r *models.FinalReport) error {
	if s.final != nil {
		return &InvariantViolationError{Msg: "final report written twice"}
	}
	if r == nil {
		return &InvariantViolationError{Msg: "assembler produced no report"}
	}
	s.final = r
	return nil
}

func (s *AnalysisState) StructureResult() *models.StructureResult { return s.structure }
func (s *AnalysisState) ActivityResult() *models.ActivityResult   { return s.activity }
func (s *AnalysisState) FinalReport() *models.FinalReport         { return s.final }

// MarkDegraded records a soft failure for observability: the named stage ran
// on partial or empty data but the run continued.
func (s *AnalysisState) MarkDegraded(stage string) {
	for _, existing := range s.degraded {
		if existing == stage {
			return
		}
	}
	s.degraded = append(s.degraded, stage)
}

// Degraded lists the stages that soft-failed, in occurrence order.
func (s *AnalysisState) Degraded() []string { return s.degraded }
