package artifact

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/tensorplex-labs/molgan/internal/fingerprint"
)

// WriteBitTable writes one row per fingerprint under a bit_0 … bit_{N-1} header.
func WriteBitTable(w io.Writer, rows []fingerprint.Vector, numBits int) error {
	cw := gocsv.DefaultCSVWriter(w)
	header := make([]string, numBits)
	for i := range header {
		header[i] = "bit_" + strconv.Itoa(i)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, numBits)
	for r, v := range rows {
		if v.Len() != numBits {
			return fmt.Errorf("row %d has %d bits, want %d", r, v.Len(), numBits)
		}
		for i := range record {
			record[i] = "0"
			if v.Test(i) {
				record[i] = "1"
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadBitTable parses a bit_i table; every cell must be 0 or 1.
func ReadBitTable(r io.Reader) ([]fingerprint.Vector, error) {
	records, err := gocsv.DefaultCSVReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("bit table has no header")
	}
	header := records[0]
	for i, h := range header {
		if h != "bit_"+strconv.Itoa(i) {
			return nil, fmt.Errorf("column %d is %q, want bit_%d", i, h, i)
		}
	}
	out := make([]fingerprint.Vector, 0, len(records)-1)
	vals := make([]float64, len(header))
	for r, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("row %d has %d columns, want %d", r, len(rec), len(header))
		}
		for i, cell := range rec {
			switch cell {
			case "0":
				vals[i] = 0
			case "1":
				vals[i] = 1
			default:
				return nil, fmt.Errorf("row %d column %d has non-binary value %q", r, i, cell)
			}
		}
		v, err := fingerprint.FromBinary(vals)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) WriteSynthetic(rows []fingerprint.Vector, numBits int) error {
	return s.create(SyntheticFingerprints, func(f *os.File) error { return WriteBitTable(f, rows, numBits) })
}

func (s *Store) ReadSynthetic() ([]fingerprint.Vector, error) {
	f, err := open(s.Path(SyntheticFingerprints), SyntheticFingerprints)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := ReadBitTable(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", SyntheticFingerprints)
	}
	return rows, nil
}

// WriteTable marshals a slice of csv-tagged structs into artifact.
func WriteTable[T any](s *Store, artifact string, rows []T) error {
	return s.create(artifact, func(f *os.File) error {
		if rows == nil {
			rows = []T{}
		}
		return gocsv.Marshal(&rows, f)
	})
}

// ReadTable unmarshals artifact into a slice of csv-tagged structs.
func ReadTable[T any](s *Store, artifact string) ([]T, error) {
	f, err := open(s.Path(artifact), artifact)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var rows []T
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read %s", artifact)
	}
	return rows, nil
}

// IDRecord maps a row of the fingerprint arrays back to its source identifier.
type IDRecord struct {
	Row   int    `csv:"row"`
	ID    string `csv:"id"`
	Label int    `csv:"label"`
}

// WriteText writes a plain-text artifact such as the classification report.
func (s *Store) WriteText(artifact, text string) error {
	return s.create(artifact, func(f *os.File) error {
		_, err := io.WriteString(f, text)
		return err
	})
}

func (s *Store) ReadText(artifact string) (string, error) {
	f, err := open(s.Path(artifact), artifact)
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", artifact)
	}
	return string(b), nil
}
