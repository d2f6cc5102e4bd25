package fingerprint

import (
	"encoding/binary"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/zeebo/xxh3"
)

type bondedNeighbor struct {
	order BondOrder
	id    uint64
}

func hashInts(vals ...uint64) uint64 {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	return xxh3.Hash(buf)
}

// atomInvariant is the radius-0 identifier of an atom: heavy degree, explicit
// valence, element, isotope, charge, hydrogen count and ring membership.
func atomInvariant(m *Molecule, i int) uint64 {
	a := m.Atoms[i]
	half := 0
	for _, b := range m.adj[i] {
		half += m.Bonds[b].Order.halfValence()
	}
	ring := uint64(0)
	if a.InRing {
		ring = 1
	}
	return hashInts(
		uint64(len(m.adj[i])),
		uint64(half),
		uint64(a.AtomicNum),
		uint64(a.Isotope),
		uint64(int64(a.Charge)),
		uint64(a.TotalH),
		ring,
	)
}

// circularIdentifiers returns the identifiers of every distinct atom-centred
// substructure up to radius. Environments that cover exactly the same bonds as
// one already emitted are dropped, keeping the smaller identifier.
func circularIdentifiers(m *Molecule, radius int) []uint64 {
	n := len(m.Atoms)
	ids := make([]uint64, n)
	envs := make([]*bitset.BitSet, n)
	out := make([]uint64, 0, n*(radius+1))
	for i := range m.Atoms {
		ids[i] = atomInvariant(m, i)
		envs[i] = bitset.New(uint(len(m.Bonds)))
		out = append(out, ids[i])
	}

	seen := map[string]struct{}{}
	for r := 1; r <= radius; r++ {
		next := make([]uint64, n)
		nextEnvs := make([]*bitset.BitSet, n)
		type candidate struct {
			atom int
			id   uint64
			key  string
		}
		var cands []candidate

		for a := 0; a < n; a++ {
			nbrs := make([]bondedNeighbor, 0, len(m.adj[a]))
			env := envs[a].Clone()
			for _, b := range m.adj[a] {
				o := m.Other(b, a)
				nbrs = append(nbrs, bondedNeighbor{order: m.Bonds[b].Order, id: ids[o]})
				env.Set(uint(b))
				env.InPlaceUnion(envs[o])
			}
			sort.Slice(nbrs, func(i, j int) bool {
				if nbrs[i].order != nbrs[j].order {
					return nbrs[i].order < nbrs[j].order
				}
				return nbrs[i].id < nbrs[j].id
			})
			vals := make([]uint64, 0, 2+2*len(nbrs))
			vals = append(vals, uint64(r), ids[a])
			for _, nb := range nbrs {
				vals = append(vals, uint64(nb.order), nb.id)
			}
			next[a] = hashInts(vals...)
			nextEnvs[a] = env

			if len(nbrs) == 0 || env.Equal(envs[a]) {
				continue
			}
			cands = append(cands, candidate{atom: a, id: next[a], key: env.String()})
		}

		sort.Slice(cands, func(i, j int) bool {
			if cands[i].id != cands[j].id {
				return cands[i].id < cands[j].id
			}
			return cands[i].atom < cands[j].atom
		})
		for _, c := range cands {
			if _, dup := seen[c.key]; dup {
				continue
			}
			seen[c.key] = struct{}{}
			out = append(out, c.id)
		}
		ids, envs = next, nextEnvs
	}
	return out
}

// fold maps identifiers onto numBits positions.
func fold(ids []uint64, numBits int) *bitset.BitSet {
	b := bitset.New(uint(numBits))
	for _, id := range ids {
		b.Set(uint(id % uint64(numBits)))
	}
	return b
}
