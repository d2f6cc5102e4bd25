package artifact

import (
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/molgan/internal/fingerprint"
)

// Drug is one row of the upstream drug table. Structure is empty when the
// supplier could not resolve the drug.
type Drug struct {
	Name      string `csv:"Drug Name"`
	DrugBank  string `csv:"DrugBank ID"`
	GeneID    string `csv:"Gene ID"`
	UniProtID string `csv:"UniProt ID"`
	Structure string `csv:"SMILES"`
}

// ID prefers the DrugBank identifier and falls back to the name.
func (d Drug) ID() string {
	if d.DrugBank != "" {
		return d.DrugBank
	}
	return d.Name
}

// ReadDrugTable loads the drug table at path. A missing file is reported as a
// MissingArtifactError for the upstream supplier.
func ReadDrugTable(path string) ([]Drug, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithStack(&MissingArtifactError{Artifact: path, ProducedBy: "upstream drug extraction"})
		}
		return nil, errors.Wrap(err, "open drug table")
	}
	defer f.Close()
	var drugs []Drug
	if err := gocsv.UnmarshalFile(f, &drugs); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "parse drug table")
	}
	return drugs, nil
}

func WriteDrugTable(path string, drugs []Drug) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create drug table")
	}
	if err := gocsv.MarshalFile(&drugs, f); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "write drug table")
	}
	return f.Close()
}

// Records converts drugs to encoder input, skipping rows without a structure
// and collapsing repeated identifiers to their first occurrence.
func Records(drugs []Drug) []fingerprint.Record {
	seen := make(map[string]struct{}, len(drugs))
	out := make([]fingerprint.Record, 0, len(drugs))
	missing := 0
	for _, d := range drugs {
		s := strings.TrimSpace(d.Structure)
		if s == "" {
			missing++
			continue
		}
		id := d.ID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, fingerprint.Record{ID: id, Structure: s})
	}
	if missing > 0 {
		log.Warn().Int("missing", missing).Msg("drugs without a structure string were skipped")
	}
	return out
}
