package fingerprint

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Record is one upstream (identifier, structure string) pair.
type Record struct {
	ID        string
	Structure string
}

// Encoded pairs a record identifier with its fingerprint.
type Encoded struct {
	ID     string
	Vector Vector
}

// Encoder produces circular fingerprints of a fixed length and radius.
type Encoder struct {
	numBits int
	radius  int
}

func NewEncoder(numBits, radius int) (*Encoder, error) {
	if numBits <= 0 {
		return nil, fmt.Errorf("fingerprint length must be positive, got %d", numBits)
	}
	if radius < 0 {
		return nil, fmt.Errorf("fingerprint radius must not be negative, got %d", radius)
	}
	return &Encoder{numBits: numBits, radius: radius}, nil
}

func (e *Encoder) NumBits() int { return e.numBits }
func (e *Encoder) Radius() int  { return e.radius }

// Encode parses structure and hashes its circular substructures into a vector.
func (e *Encoder) Encode(structure string) (Vector, error) {
	mol, err := ParseSMILES(structure)
	if err != nil {
		return Vector{}, fmt.Errorf("parse %q: %w", structure, err)
	}
	return Vector{bits: fold(circularIdentifiers(mol, e.radius), e.numBits), n: e.numBits}, nil
}

// EncodeAll encodes every record, dropping the ones that fail to parse.
// Dropped identifiers are returned in input order.
func (e *Encoder) EncodeAll(records []Record) (encoded []Encoded, dropped []string) {
	encoded = make([]Encoded, 0, len(records))
	for _, r := range records {
		v, err := e.Encode(r.Structure)
		if err != nil {
			log.Warn().Err(err).Str("id", r.ID).Msg("dropping record with unparseable structure")
			dropped = append(dropped, r.ID)
			continue
		}
		encoded = append(encoded, Encoded{ID: r.ID, Vector: v})
	}
	log.Info().Int("encoded", len(encoded)).Int("dropped", len(dropped)).Msgf("encoded %d of %d structures", len(encoded), len(records))
	return encoded, dropped
}

// Vectors strips identifiers.
func Vectors(encoded []Encoded) []Vector {
	out := make([]Vector, len(encoded))
	for i, e := range encoded {
		out[i] = e.Vector
	}
	return out
}
