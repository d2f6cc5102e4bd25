package artifact

import (
	"os"

	"github.com/pkg/errors"

	"github.com/tensorplex-labs/molgan/internal/classifier"
	"github.com/tensorplex-labs/molgan/internal/gan"
)

func (s *Store) WriteCheckpoint(c gan.Checkpoint) error {
	return s.create(GANCheckpoint, func(f *os.File) error { return gan.WriteCheckpoint(f, c) })
}

func (s *Store) ReadCheckpoint() (gan.Checkpoint, error) {
	f, err := open(s.Path(GANCheckpoint), GANCheckpoint)
	if err != nil {
		return gan.Checkpoint{}, err
	}
	defer f.Close()
	c, err := gan.ReadCheckpoint(f)
	if err != nil {
		return c, errors.Wrapf(err, "read %s", GANCheckpoint)
	}
	return c, nil
}

func (s *Store) WriteForest(f *classifier.Forest) error {
	return s.create(ClassifierModel, func(w *os.File) error { return classifier.WriteForest(w, f) })
}

func (s *Store) ReadForest() (*classifier.Forest, error) {
	f, err := open(s.Path(ClassifierModel), ClassifierModel)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	forest, err := classifier.ReadForest(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", ClassifierModel)
	}
	return forest, nil
}
