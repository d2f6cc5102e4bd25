package artifact

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/tensorplex-labs/molgan/internal/fingerprint"
)

// WriteNpy encodes rows as a 2-D float64 array. An empty set is written as a
// zero-length 1-D array.
func WriteNpy(w io.Writer, rows []fingerprint.Vector) error {
	if len(rows) == 0 {
		return npyio.Write(w, []float64{})
	}
	n := rows[0].Len()
	data := make([]float64, 0, len(rows)*n)
	for i, v := range rows {
		if v.Len() != n {
			return fmt.Errorf("row %d has %d bits, want %d", i, v.Len(), n)
		}
		data = append(data, v.Floats()...)
	}
	return npyio.Write(w, mat.NewDense(len(rows), n, data))
}

// readFloats decodes any supported numeric dtype into float64 along with the
// array shape.
func readFloats(r io.Reader) ([]float64, []int, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	if nr.Header.Descr.Fortran {
		return nil, nil, fmt.Errorf("fortran-ordered arrays are not supported")
	}
	shape := nr.Header.Descr.Shape
	dtype := strings.TrimLeft(nr.Header.Descr.Type, "<>|=")

	switch dtype {
	case "f8":
		var v []float64
		err = nr.Read(&v)
		return v, shape, err
	case "f4":
		var v []float32
		if err = nr.Read(&v); err != nil {
			return nil, nil, err
		}
		return convert(v), shape, nil
	case "i8":
		var v []int64
		if err = nr.Read(&v); err != nil {
			return nil, nil, err
		}
		return convert(v), shape, nil
	case "i4":
		var v []int32
		if err = nr.Read(&v); err != nil {
			return nil, nil, err
		}
		return convert(v), shape, nil
	case "u1":
		var v []uint8
		if err = nr.Read(&v); err != nil {
			return nil, nil, err
		}
		return convert(v), shape, nil
	case "b1":
		var v []bool
		if err = nr.Read(&v); err != nil {
			return nil, nil, err
		}
		out := make([]float64, len(v))
		for i, b := range v {
			if b {
				out[i] = 1
			}
		}
		return out, shape, nil
	}
	return nil, nil, fmt.Errorf("unsupported npy dtype %q", nr.Header.Descr.Type)
}

func convert[T float32 | int64 | int32 | uint8](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// ReadNpy decodes a 2-D array of 0/1 values into fingerprints. A 1-D array of
// length zero decodes to no rows.
func ReadNpy(r io.Reader) ([]fingerprint.Vector, error) {
	data, shape, err := readFloats(r)
	if err != nil {
		return nil, err
	}
	if len(shape) == 1 && shape[0] == 0 {
		return nil, nil
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("fingerprint array must be 2-D, got shape %v", shape)
	}
	rows, cols := shape[0], shape[1]
	if len(data) != rows*cols {
		return nil, fmt.Errorf("array holds %d values, shape %v needs %d", len(data), shape, rows*cols)
	}
	out := make([]fingerprint.Vector, rows)
	for i := range out {
		v, err := fingerprint.FromBinary(data[i*cols : (i+1)*cols])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (s *Store) WriteFingerprints(artifact string, rows []fingerprint.Vector) error {
	return s.create(artifact, func(f *os.File) error { return WriteNpy(f, rows) })
}

func (s *Store) ReadFingerprints(artifact string) ([]fingerprint.Vector, error) {
	f, err := open(s.Path(artifact), artifact)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := ReadNpy(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", artifact)
	}
	return rows, nil
}

// WriteLabels stores labels as a 1-D float64 array.
func (s *Store) WriteLabels(labels []int) error {
	data := make([]float64, len(labels))
	for i, l := range labels {
		data[i] = float64(l)
	}
	return s.create(Labels, func(f *os.File) error { return npyio.Write(f, data) })
}

func (s *Store) ReadLabels() ([]int, error) {
	f, err := open(s.Path(Labels), Labels)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, shape, err := readFloats(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", Labels)
	}
	if len(shape) != 1 {
		return nil, fmt.Errorf("labels must be 1-D, got shape %v", shape)
	}
	out := make([]int, len(data))
	for i, v := range data {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("label %d has value %v, want 0 or 1", i, v)
		}
		out[i] = int(v)
	}
	return out, nil
}
