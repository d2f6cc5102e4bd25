package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/tensorplex-labs/molgan/internal/artifact"
	"github.com/tensorplex-labs/molgan/internal/classifier"
	"github.com/tensorplex-labs/molgan/internal/fingerprint"
	"github.com/tensorplex-labs/molgan/internal/gan"
	"github.com/tensorplex-labs/molgan/internal/projection"
	"github.com/tensorplex-labs/molgan/internal/similarity"
)

var healthArtifacts = []string{
	artifact.PositiveFingerprints,
	artifact.ClassificationReport,
	artifact.SyntheticFingerprints,
	artifact.SimilarityResults,
	artifact.ProjectionCoordinates,
}

func (s *Server) getHealth(c *fiber.Ctx) error {
	body := HealthBody{Status: "ok", Artifacts: make(map[string]bool, len(healthArtifacts))}
	for _, a := range healthArtifacts {
		body.Artifacts[a] = s.store.Exists(a)
	}
	return c.JSON(createResponse(body, nil))
}

func (s *Server) getSimilarity(c *fiber.Ctx) error {
	results, err := artifact.ReadTable[similarity.Result](s.store, artifact.SimilarityResults)
	if err != nil {
		return artifactError(err)
	}
	summary, err := similarity.Summarize(results)
	if err != nil {
		return err
	}
	if results == nil {
		results = []similarity.Result{}
	}
	return c.JSON(createResponse(SimilarityBody{Results: results, Summary: summary}, nil))
}

func (s *Server) getProjection(c *fiber.Ctx) error {
	points, err := artifact.ReadTable[projection.Point](s.store, artifact.ProjectionCoordinates)
	if err != nil {
		return artifactError(err)
	}
	switch method := projection.Method(c.Query("method")); method {
	case "":
	case projection.MethodPCA, projection.MethodTSNE:
		points = lo.Filter(points, func(p projection.Point, _ int) bool { return p.Method == method })
	default:
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown projection method %q", method))
	}
	if points == nil {
		points = []projection.Point{}
	}
	return c.JSON(createResponse(ProjectionBody{Points: points}, nil))
}

func (s *Server) getReport(c *fiber.Ctx) error {
	text, err := s.store.ReadText(artifact.ClassificationReport)
	if err != nil {
		return artifactError(err)
	}
	importance, err := artifact.ReadTable[classifier.FeatureImportance](s.store, artifact.FeatureImportance)
	if err != nil && !artifact.IsMissing(err) {
		return err
	}
	top := c.QueryInt("top", 20)
	if top >= 0 && top < len(importance) {
		importance = importance[:top]
	}
	if importance == nil {
		importance = []classifier.FeatureImportance{}
	}
	return c.JSON(createResponse(ReportBody{Text: text, Importance: importance}, nil))
}

func (s *Server) getSynthetic(c *fiber.Ctx) error {
	rows, err := s.store.ReadSynthetic()
	if err != nil {
		return artifactError(err)
	}
	body := SyntheticBody{
		Fingerprints: lo.Map(rows, func(v fingerprint.Vector, i int) SyntheticFingerprint {
			return SyntheticFingerprint{Index: i, OnBits: v.OnBits()}
		}),
	}
	if len(rows) > 0 {
		body.NumBits = rows[0].Len()
	}
	preds, err := artifact.ReadTable[classifier.CandidatePrediction](s.store, artifact.CandidatePredictions)
	if err != nil && !artifact.IsMissing(err) {
		return err
	}
	body.Predictions = preds
	return c.JSON(createResponse(body, nil))
}

func (s *Server) getTraining(c *fiber.Ctx) error {
	epochs, err := artifact.ReadTable[gan.EpochStats](s.store, artifact.TrainStats)
	if err != nil {
		return artifactError(err)
	}
	if epochs == nil {
		epochs = []gan.EpochStats{}
	}
	body := TrainingBody{Epochs: epochs}

	ck, err := s.store.ReadCheckpoint()
	switch {
	case err == nil:
		body.Model = &ModelBody{
			NumBits:             ck.NumBits,
			NoiseDim:            ck.NoiseDim,
			Threshold:           ck.Threshold,
			GeneratorLayers:     layerSizes(ck.Generator),
			DiscriminatorLayers: layerSizes(ck.Discriminator),
		}
	case !artifact.IsMissing(err):
		return err
	}
	return c.JSON(createResponse(body, nil))
}

func layerSizes(layers []gan.LayerState) []int {
	if len(layers) == 0 {
		return nil
	}
	out := []int{layers[0].In}
	for _, l := range layers {
		out = append(out, l.Out)
	}
	return out
}
