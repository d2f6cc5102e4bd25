package artifact

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// MissingArtifactError is returned when a stage needs an artifact that an
// earlier stage has not produced.
type MissingArtifactError struct {
	Artifact   string
	ProducedBy string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("required artifact %q is missing; run the %s stage first", e.Artifact, e.ProducedBy)
}

// IsMissing reports whether err wraps a MissingArtifactError.
func IsMissing(err error) bool {
	var m *MissingArtifactError
	return errors.As(err, &m)
}

// open opens an artifact, mapping a missing file to MissingArtifactError.
func open(path, name string) (*os.File, error) {
	f, err := os.Open(path)
	if err == nil {
		return f, nil
	}
	if os.IsNotExist(err) {
		return nil, errors.WithStack(&MissingArtifactError{Artifact: name, ProducedBy: producers[name]})
	}
	return nil, errors.Wrapf(err, "open %s", name)
}
