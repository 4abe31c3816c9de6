package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"repoinsight/config"
	"repoinsight/internal/models"
)

// analyzerVersion is stamped into every report's metadata.
const analyzerVersion = "1.0.0"

// Coordinator sequences the analysis stages over a shared state and owns
// failure isolation between them: a stage that cannot produce a result is
// replaced by an empty result and recorded as degraded, and only invariant
// violations abort the run.
type Coordinator struct {
	remote   RemoteDataAccess
	reasoner Reasoner
	cfg      config.AnalysisConfig
	clock    func() time.Time
}

// NewCoordinator wires the workflow. The analysis configuration is injected;
// no component reads ambient state.
func NewCoordinator(remote RemoteDataAccess, reasoner Reasoner, cfg config.AnalysisConfig) *Coordinator {
	return &Coordinator{
		remote:   remote,
		reasoner: reasoner,
		cfg:      cfg,
		clock:    time.Now,
	}
}

// Run executes structure discovery, then activity analysis, then the merge,
// and returns the assembled report. The stage order is load-bearing: the
// activity stage cross-references service names discovered in stage one,
// tolerating an empty list.
func (c *Coordinator) Run(ctx context.Context, ref models.RepoRef) (*models.FinalReport, error) {
	if ref.Owner == "" || ref.Name == "" {
		return nil, &WorkflowError{Stage: "init", Err: &InvariantViolationError{Msg: "repository owner and name are required"}}
	}

	state := NewState(ref)
	logrus.Infof("Starting analysis workflow for %s", ref)

	state.Status = StatusExploring
	logrus.Info("1. Exploring repository structure...")
	structure, degraded, err := newStructureStage(c.remote, c.reasoner, c.cfg).Explore(ctx, ref)
	if err != nil {
		// Soft failure: continue with an empty structure result.
		logrus.Warnf("Structure stage degraded: %v", err)
		structure = emptyStructureResult()
		degraded = true
	}
	if degraded {
		state.MarkDegraded("structure")
	}
	if err := state.SetStructureResult(structure); err != nil {
		state.Status = StatusFailed
		return nil, &WorkflowError{Stage: "structure", Err: err}
	}

	state.Status = StatusAnalyzingIssues
	logrus.Info("2. Analyzing issues and pull requests...")
	activity, degraded, err := newActivityStage(c.remote, c.reasoner, c.cfg).Analyze(ctx, ref, serviceNames(structure))
	if err != nil {
		logrus.Warnf("Activity stage degraded: %v", err)
		activity = emptyActivityResult()
		degraded = true
	}
	if degraded {
		state.MarkDegraded("activity")
	}
	if err := state.SetActivityResult(activity); err != nil {
		state.Status = StatusFailed
		return nil, &WorkflowError{Stage: "activity", Err: err}
	}

	state.Status = StatusCombining
	logrus.Info("3. Combining results...")
	report, err := assembleReport(state, c.clock(), analyzerVersion)
	if err != nil {
		state.Status = StatusFailed
		return nil, &WorkflowError{Stage: "combine", Err: err}
	}
	if err := state.SetFinalReport(report); err != nil {
		state.Status = StatusFailed
		return nil, &WorkflowError{Stage: "combine", Err: err}
	}

	state.Status = StatusDone
	logrus.Infof("Workflow complete for %s: %d services, %d issues",
		ref, len(report.Repository.Services), report.Issues.Summary.TotalIssues)
	return report, nil
}

func serviceNames(structure *models.StructureResult) []string {
	names := make([]string, 0, len(structure.Services))
	for _, svc := range structure.Services {
		names = append(names, svc.Name)
	}
	return names
}
