package workflow

import (
	"time"

	"repoinsight/internal/models"
)

// assembleReport merges the two stage results and run metadata into the
// final report. Pure: no external calls, no mutation of the inputs. Missing
// stage results are an invariant violation, not a recoverable condition.
func assembleReport(state *AnalysisState, at time.Time, version string) (*models.FinalReport, error) {
	structure := state.StructureResult()
	activity := state.ActivityResult()
	if structure == nil {
		return nil, &InvariantViolationError{Msg: "assembling report without structure result"}
	}
	if activity == nil {
		return nil, &InvariantViolationError{Msg: "assembling report without activity result"}
	}

	return &models.FinalReport{
		Metadata: models.ReportMetadata{
			AnalyzedAt:      at.UTC().Format(time.RFC3339),
			Repository:      state.Repository,
			RepositoryURL:   state.Repository.URL(),
			AnalyzerVersion: version,
			DegradedStages:  state.Degraded(),
		},
		Repository: *structure,
		Issues:     *activity,
	}, nil
}
