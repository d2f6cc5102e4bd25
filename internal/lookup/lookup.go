// Package lookup resolves chemical identifiers to structure strings through an
// external compound service and assembles the random negative candidate pool.
package lookup

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is carried by a Resolution when the service knows no such compound.
	ErrNotFound = errors.New("compound not found")
	// ErrNegativeShortfall is returned by AssemblePool under the fail policy.
	ErrNegativeShortfall = errors.New("negative pool shortfall")
)

// Resolution is the explicit outcome of one lookup. OK is true only when a
// non-empty Structure was obtained; otherwise Err says why.
type Resolution struct {
	Structure string
	OK        bool
	Err       error
}

func resolved(structure string) Resolution {
	if structure == "" {
		return Resolution{Err: ErrNotFound}
	}
	return Resolution{Structure: structure, OK: true}
}

func failed(err error) Resolution {
	return Resolution{Err: err}
}

// Resolver is the narrow interface the pipeline needs from the compound service.
type Resolver interface {
	ByName(ctx context.Context, name string) Resolution
	ByCID(ctx context.Context, cid int) Resolution
}
