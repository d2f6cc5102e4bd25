package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/molgan/internal/artifact"
	"github.com/tensorplex-labs/molgan/internal/classifier"
	"github.com/tensorplex-labs/molgan/internal/fingerprint"
	"github.com/tensorplex-labs/molgan/internal/lookup"
)

// EncodedSet is the labelled fingerprint set shared by the classifier and the
// adversarial trainer. IDs lists positives first, matching the label order.
type EncodedSet struct {
	Positives []fingerprint.Vector
	Negatives []fingerprint.Vector
	IDs       []artifact.IDRecord
	Dropped   []string
}

// Samples returns positives labelled relevant followed by negatives labelled control.
func (s EncodedSet) Samples() []classifier.Sample {
	out := make([]classifier.Sample, 0, len(s.Positives)+len(s.Negatives))
	for _, v := range s.Positives {
		out = append(out, classifier.Sample{Vector: v, Label: classifier.LabelRelevant})
	}
	for _, v := range s.Negatives {
		out = append(out, classifier.Sample{Vector: v, Label: classifier.LabelControl})
	}
	return out
}

func (s EncodedSet) Labels() []int {
	out := make([]int, 0, len(s.Positives)+len(s.Negatives))
	for range s.Positives {
		out = append(out, classifier.LabelRelevant)
	}
	for range s.Negatives {
		out = append(out, classifier.LabelControl)
	}
	return out
}

// EncodeStage fingerprints both record sets and persists the arrays, labels
// and row identifiers. Unparseable records are dropped.
func (p *Pipeline) EncodeStage(positives, negatives []fingerprint.Record) (EncodedSet, error) {
	enc, err := fingerprint.NewEncoder(p.cfg.NumBits, p.cfg.Radius)
	if err != nil {
		return EncodedSet{}, err
	}

	pos, droppedPos := enc.EncodeAll(positives)
	if len(pos) == 0 {
		return EncodedSet{}, fmt.Errorf("no positive structure could be encoded (%d records)", len(positives))
	}
	neg, droppedNeg := enc.EncodeAll(negatives)
	if len(neg) == 0 {
		log.Warn().Int("records", len(negatives)).Msg("no negative fingerprints; the classifier stage will refuse this set")
	}

	set := EncodedSet{
		Positives: fingerprint.Vectors(pos),
		Negatives: fingerprint.Vectors(neg),
		Dropped:   append(droppedPos, droppedNeg...),
	}
	for _, e := range pos {
		set.IDs = append(set.IDs, artifact.IDRecord{Row: len(set.IDs), ID: e.ID, Label: classifier.LabelRelevant})
	}
	for _, e := range neg {
		set.IDs = append(set.IDs, artifact.IDRecord{Row: len(set.IDs), ID: e.ID, Label: classifier.LabelControl})
	}

	if err := p.store.WriteFingerprints(artifact.PositiveFingerprints, set.Positives); err != nil {
		return set, err
	}
	if err := p.store.WriteFingerprints(artifact.NegativeFingerprints, set.Negatives); err != nil {
		return set, err
	}
	if err := p.store.WriteLabels(set.Labels()); err != nil {
		return set, err
	}
	if err := artifact.WriteTable(p.store, artifact.EncodedIDs, set.IDs); err != nil {
		return set, err
	}

	log.Info().Int("positives", len(set.Positives)).Int("negatives", len(set.Negatives)).
		Int("dropped", len(set.Dropped)).Msg("fingerprints encoded")
	return set, nil
}

// Encode reads the drug table, resolves missing structures, assembles the
// negative pool and runs EncodeStage.
func (p *Pipeline) Encode(ctx context.Context) (EncodedSet, error) {
	drugs, err := artifact.ReadDrugTable(p.cfg.DrugTable)
	if err != nil {
		return EncodedSet{}, err
	}
	if p.resolver == nil {
		return EncodedSet{}, fmt.Errorf("encode: a structure resolver is required to assemble negatives")
	}
	if drugs, err = lookup.ResolveStructures(ctx, p.resolver, drugs); err != nil {
		return EncodedSet{}, err
	}

	opts, err := lookup.PoolOptionsFrom(p.cfg.LookupEnvConfig)
	if err != nil {
		return EncodedSet{}, err
	}
	pool, err := lookup.AssemblePool(ctx, p.resolver, seeded("negatives", p.cfg.LookupEnvConfig.Seed), opts)
	if err != nil {
		return EncodedSet{}, err
	}
	return p.EncodeStage(artifact.Records(drugs), pool.Records())
}

// LoadEncoded reads the persisted EncodedSet and checks that the label array
// lines up with positives followed by negatives.
func (p *Pipeline) LoadEncoded() (EncodedSet, error) {
	if err := p.store.Require(artifact.PositiveFingerprints, artifact.NegativeFingerprints, artifact.Labels); err != nil {
		return EncodedSet{}, err
	}
	pos, err := p.store.ReadFingerprints(artifact.PositiveFingerprints)
	if err != nil {
		return EncodedSet{}, err
	}
	neg, err := p.store.ReadFingerprints(artifact.NegativeFingerprints)
	if err != nil {
		return EncodedSet{}, err
	}
	set := EncodedSet{Positives: pos, Negatives: neg}

	labels, err := p.store.ReadLabels()
	if err != nil {
		return EncodedSet{}, err
	}
	want := set.Labels()
	if len(labels) != len(want) {
		return EncodedSet{}, fmt.Errorf("%s has %d rows, fingerprints have %d", artifact.Labels, len(labels), len(want))
	}
	for i := range want {
		if labels[i] != want[i] {
			return EncodedSet{}, fmt.Errorf("%s row %d is %d, want %d (positives first, then negatives)", artifact.Labels, i, labels[i], want[i])
		}
	}
	return set, nil
}
