package classifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/tensorplex-labs/molgan/internal/fingerprint"
)

// ClassMetrics are the per-class scores of a classification report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// FeatureImportance is one bit's share of the forest's impurity decrease.
type FeatureImportance struct {
	Bit        int     `csv:"bit" json:"bit"`
	Importance float64 `csv:"importance" json:"importance"`
}

// Report summarises predictions on a held-out set. Confusion is indexed
// [true label][predicted label].
type Report struct {
	Classes     [numClasses]ClassMetrics    `json:"classes"`
	Confusion   [numClasses][numClasses]int `json:"confusion"`
	Accuracy    float64                     `json:"accuracy"`
	MacroAvg    ClassMetrics                `json:"macro_avg"`
	WeightedAvg ClassMetrics                `json:"weighted_avg"`
	Total       int                         `json:"total"`
	TopFeatures []FeatureImportance         `json:"top_features"`
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// NewReport scores predicted against truth.
func NewReport(truth, predicted []int) (Report, error) {
	var r Report
	if len(truth) != len(predicted) {
		return r, fmt.Errorf("%d labels but %d predictions", len(truth), len(predicted))
	}
	for i := range truth {
		if truth[i] < 0 || truth[i] >= numClasses || predicted[i] < 0 || predicted[i] >= numClasses {
			return r, fmt.Errorf("row %d: labels must be 0 or 1, got %d/%d", i, truth[i], predicted[i])
		}
		r.Confusion[truth[i]][predicted[i]]++
	}
	r.Total = len(truth)

	correct := 0
	for k := 0; k < numClasses; k++ {
		tp := float64(r.Confusion[k][k])
		var predK, trueK float64
		for j := 0; j < numClasses; j++ {
			predK += float64(r.Confusion[j][k])
			trueK += float64(r.Confusion[k][j])
		}
		p := safeDiv(tp, predK)
		rec := safeDiv(tp, trueK)
		r.Classes[k] = ClassMetrics{
			Precision: p,
			Recall:    rec,
			F1:        safeDiv(2*p*rec, p+rec),
			Support:   int(trueK),
		}
		correct += r.Confusion[k][k]
	}
	r.Accuracy = safeDiv(float64(correct), float64(r.Total))

	for _, c := range r.Classes {
		r.MacroAvg.Precision += c.Precision / numClasses
		r.MacroAvg.Recall += c.Recall / numClasses
		r.MacroAvg.F1 += c.F1 / numClasses
		w := safeDiv(float64(c.Support), float64(r.Total))
		r.WeightedAvg.Precision += c.Precision * w
		r.WeightedAvg.Recall += c.Recall * w
		r.WeightedAvg.F1 += c.F1 * w
	}
	r.MacroAvg.Support = r.Total
	r.WeightedAvg.Support = r.Total
	return r, nil
}

// Evaluate predicts every test sample and builds a report.
func (f *Forest) Evaluate(test []Sample, topK int) (Report, error) {
	truth := lo.Map(test, func(s Sample, _ int) int { return s.Label })
	preds, err := f.PredictAll(lo.Map(test, func(s Sample, _ int) fingerprint.Vector { return s.Vector }))
	if err != nil {
		return Report{}, err
	}
	r, err := NewReport(truth, preds)
	if err != nil {
		return r, err
	}
	r.TopFeatures = f.TopFeatures(topK)
	return r, nil
}

// TopFeatures returns the k most important bits, highest first; equal
// importances are ordered by bit index.
func (f *Forest) TopFeatures(k int) []FeatureImportance {
	all := make([]FeatureImportance, len(f.Importance))
	for i, v := range f.Importance {
		all[i] = FeatureImportance{Bit: i, Importance: v}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Importance > all[j].Importance })
	if k >= 0 && k < len(all) {
		all = all[:k]
	}
	return all
}

// String renders the report as a plain-text table with four decimals.
func (r Report) String() string {
	const digits = 4
	var b strings.Builder
	row := func(name string, c ClassMetrics) {
		fmt.Fprintf(&b, "%12s %10.*f %10.*f %10.*f %10d\n", name, digits, c.Precision, digits, c.Recall, digits, c.F1, c.Support)
	}
	fmt.Fprintf(&b, "%12s %10s %10s %10s %10s\n\n", "", "precision", "recall", "f1-score", "support")
	for k, c := range r.Classes {
		row(fmt.Sprintf("%d", k), c)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%12s %10s %10s %10.*f %10d\n", "accuracy", "", "", digits, r.Accuracy, r.Total)
	row("macro avg", r.MacroAvg)
	row("weighted avg", r.WeightedAvg)

	b.WriteString("\nconfusion matrix (rows: true, columns: predicted)\n")
	fmt.Fprintf(&b, "%12s %10s %10s\n", "", "0", "1")
	for k := 0; k < numClasses; k++ {
		fmt.Fprintf(&b, "%12d %10d %10d\n", k, r.Confusion[k][0], r.Confusion[k][1])
	}

	if len(r.TopFeatures) > 0 {
		fmt.Fprintf(&b, "\ntop %d fingerprint bits by importance\n", len(r.TopFeatures))
		for _, fi := range r.TopFeatures {
			fmt.Fprintf(&b, "%12d %10.*f\n", fi.Bit, digits, fi.Importance)
		}
	}
	return b.String()
}
