package lookup

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/tensorplex-labs/molgan/internal/artifact"
	"github.com/tensorplex-labs/molgan/internal/config"
	"github.com/tensorplex-labs/molgan/internal/fingerprint"
)

type PoolOptions struct {
	Want       int
	CIDMin     int
	CIDMax     int // exclusive
	Oversample int
	Policy     config.ShortfallPolicy
}

// Negative is one randomly drawn control compound.
type Negative struct {
	CID       int
	Structure string
}

func (n Negative) ID() string {
	return "CID:" + strconv.Itoa(n.CID)
}

// Pool is the outcome of AssemblePool.
type Pool struct {
	Negatives []Negative
	Attempted int
	Failed    int
}

// Records returns the pool as encoder input.
func (p Pool) Records() []fingerprint.Record {
	return lo.Map(p.Negatives, func(n Negative, _ int) fingerprint.Record {
		return fingerprint.Record{ID: n.ID(), Structure: n.Structure}
	})
}

// AssemblePool draws Oversample×Want distinct identifiers from [CIDMin, CIDMax)
// and resolves them in draw order until Want structures are obtained.
func AssemblePool(ctx context.Context, r Resolver, rng *rand.Rand, opts PoolOptions) (Pool, error) {
	if opts.Want <= 0 {
		return Pool{}, nil
	}
	if opts.Oversample < 1 {
		opts.Oversample = 1
	}
	span := opts.CIDMax - opts.CIDMin
	if span <= 0 {
		return Pool{}, fmt.Errorf("empty cid range [%d, %d)", opts.CIDMin, opts.CIDMax)
	}
	draws := min(opts.Want*opts.Oversample, span)
	cids := distinctCIDs(rng, opts.CIDMin, span, draws)

	var pool Pool
	for _, cid := range cids {
		if err := ctx.Err(); err != nil {
			return pool, err
		}
		if len(pool.Negatives) >= opts.Want {
			break
		}
		pool.Attempted++
		res := r.ByCID(ctx, cid)
		if !res.OK {
			pool.Failed++
			log.Debug().Err(res.Err).Int("cid", cid).Msg("negative candidate unresolved")
			continue
		}
		pool.Negatives = append(pool.Negatives, Negative{CID: cid, Structure: res.Structure})
	}

	got := len(pool.Negatives)
	if got < opts.Want {
		if opts.Policy == config.ShortfallFail {
			return pool, fmt.Errorf("%w: resolved %d of %d requested (%d attempted)", ErrNegativeShortfall, got, opts.Want, pool.Attempted)
		}
		log.Warn().Int("resolved", got).Int("requested", opts.Want).Int("attempted", pool.Attempted).Msg("negative pool smaller than requested, proceeding")
	}
	log.Info().Int("negatives", got).Int("failed", pool.Failed).Msg("negative pool assembled")
	return pool, nil
}

func distinctCIDs(rng *rand.Rand, base, span, n int) []int {
	// Partial Fisher-Yates over a sparse index map.
	swapped := make(map[int]int, n)
	at := func(i int) int {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i
	}
	out := make([]int, n)
	for i := range n {
		j := i + rng.IntN(span-i)
		vi, vj := at(i), at(j)
		swapped[i], swapped[j] = vj, vi
		out[i] = base + vj
	}
	return out
}

// ResolveStructures fills in missing structures by drug name. Drugs that
// still have no structure afterwards are dropped with a warning.
func ResolveStructures(ctx context.Context, r Resolver, drugs []artifact.Drug) ([]artifact.Drug, error) {
	out := make([]artifact.Drug, 0, len(drugs))
	for _, d := range drugs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.Structure == "" {
			res := r.ByName(ctx, d.Name)
			if !res.OK {
				log.Warn().Err(res.Err).Str("drug", d.Name).Msg("no structure for drug, dropping")
				continue
			}
			d.Structure = res.Structure
		}
		out = append(out, d)
	}
	return out, nil
}
