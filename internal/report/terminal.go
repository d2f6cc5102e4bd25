package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/tensorplex-labs/molgan/internal/classifier"
)

const maxBarWidth = 50

// ImportanceBars writes a horizontal bar per feature, highest importance first.
func ImportanceBars(w io.Writer, features []classifier.FeatureImportance, title string) error {
	if len(features) == 0 {
		return nil
	}

	sorted := slices.Clone(features)
	slices.SortStableFunc(sorted, func(a, b classifier.FeatureImportance) int {
		switch {
		case a.Importance > b.Importance:
			return -1
		case a.Importance < b.Importance:
			return 1
		}
		return a.Bit - b.Bit
	})

	maxImp := sorted[0].Importance
	minImp := sorted[len(sorted)-1].Importance

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%s:\n", title)
	sb.WriteString("     Bit | Importance | Bar Chart\n")
	sb.WriteString("---------|------------|" + strings.Repeat("-", maxBarWidth) + "\n")
	for _, f := range sorted {
		var width int
		if maxImp != minImp {
			width = int((f.Importance - minImp) / (maxImp - minImp) * maxBarWidth)
		} else {
			width = maxBarWidth / 2
		}
		bar := strings.Repeat("█", width)
		if width == 0 {
			bar = "▏"
		}
		fmt.Fprintf(&sb, "%8d | %.8f | %s\n", f.Bit, f.Importance, bar)
	}
	fmt.Fprintf(&sb, "\nScale: Min=%.6f, Max=%.6f\n", minImp, maxImp)

	_, err := io.WriteString(w, sb.String())
	return err
}
