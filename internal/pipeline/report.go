package pipeline

import (
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/molgan/internal/artifact"
	"github.com/tensorplex-labs/molgan/internal/classifier"
	"github.com/tensorplex-labs/molgan/internal/gan"
	"github.com/tensorplex-labs/molgan/internal/projection"
	"github.com/tensorplex-labs/molgan/internal/report"
)

func ReportInputs(ev Evaluation, importance []classifier.FeatureImportance, epochs []gan.EpochStats) report.Inputs {
	return report.Inputs{Projection: ev.Projection, Importance: importance, Epochs: epochs}
}

// LoadReportInputs reads whatever report inputs have been persisted. Missing
// artifacts leave the corresponding input empty.
func (p *Pipeline) LoadReportInputs() report.Inputs {
	var in report.Inputs

	points, err := artifact.ReadTable[projection.Point](p.store, artifact.ProjectionCoordinates)
	logUnreadable(artifact.ProjectionCoordinates, err)
	in.Projection = projection.FromPoints(points)

	importance, err := artifact.ReadTable[classifier.FeatureImportance](p.store, artifact.FeatureImportance)
	logUnreadable(artifact.FeatureImportance, err)
	if len(importance) > p.cfg.TopFeatures {
		importance = importance[:p.cfg.TopFeatures]
	}
	in.Importance = importance

	in.Epochs, err = artifact.ReadTable[gan.EpochStats](p.store, artifact.TrainStats)
	logUnreadable(artifact.TrainStats, err)
	return in
}

func logUnreadable(name string, err error) {
	switch {
	case err == nil:
	case artifact.IsMissing(err):
		log.Info().Str("artifact", name).Msg("artifact not present, skipping its figure")
	default:
		log.Warn().Err(err).Str("artifact", name).Msg("artifact unreadable, skipping its figure")
	}
}

// ReportStage renders figures. It never fails the pipeline and never touches
// earlier artifacts; failures are logged.
func (p *Pipeline) ReportStage(in report.Inputs) []string {
	sink := report.NewSink(p.store.FigurePath, p.terminal)
	written, err := sink.Render(in)
	if err != nil {
		log.Error().Err(err).Msg("report stage finished with errors")
	}
	return written
}

// Report renders figures from persisted artifacts.
func (p *Pipeline) Report() []string {
	return p.ReportStage(p.LoadReportInputs())
}
