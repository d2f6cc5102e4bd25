package report

import (
	"errors"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/molgan/internal/classifier"
	"github.com/tensorplex-labs/molgan/internal/gan"
	"github.com/tensorplex-labs/molgan/internal/projection"
)

const (
	PCAFigure        = "pca.png"
	TSNEFigure       = "tsne.png"
	ImportanceFigure = "feature_importance.png"
	LossFigure       = "gan_loss.png"
)

// Inputs gathers whatever evaluation output is available; any field may be empty.
type Inputs struct {
	Projection projection.Projection
	Importance []classifier.FeatureImportance
	Epochs     []gan.EpochStats
}

// Sink renders figures to the paths figurePath returns and the importance
// chart to terminal.
type Sink struct {
	figurePath func(name string) string
	terminal   io.Writer
}

func NewSink(figurePath func(name string) string, terminal io.Writer) *Sink {
	return &Sink{figurePath: figurePath, terminal: terminal}
}

// Render draws every figure it has data for. A failing figure does not stop
// the others; the returned error joins all failures.
func (s *Sink) Render(in Inputs) ([]string, error) {
	var (
		written []string
		errs    []error
	)
	record := func(name string, ok bool, err error) {
		if err != nil {
			log.Error().Err(err).Str("figure", name).Msg("failed to render figure")
			errs = append(errs, err)
			return
		}
		if ok {
			written = append(written, s.figurePath(name))
			log.Info().Str("figure", s.figurePath(name)).Msg("figure written")
		}
	}

	ok, err := Scatter(s.figurePath(PCAFigure), "PCA: real vs synthetic fingerprints", in.Projection.PCA)
	record(PCAFigure, ok, err)
	ok, err = Scatter(s.figurePath(TSNEFigure), "t-SNE: real vs synthetic fingerprints", in.Projection.TSNE)
	record(TSNEFigure, ok, err)
	ok, err = ImportanceChart(s.figurePath(ImportanceFigure), in.Importance)
	record(ImportanceFigure, ok, err)
	ok, err = LossCurve(s.figurePath(LossFigure), in.Epochs)
	record(LossFigure, ok, err)

	if s.terminal != nil {
		if err := ImportanceBars(s.terminal, in.Importance, "Top fingerprint bits"); err != nil {
			errs = append(errs, err)
		}
	}
	return written, errors.Join(errs...)
}
