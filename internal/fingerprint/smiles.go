package fingerprint

import (
	"fmt"
	"slices"
	"strconv"
	"unicode"
)

// BondOrder is the multiplicity of a bond; Aromatic marks delocalized bonds.
type BondOrder int

const (
	BondSingle BondOrder = iota + 1
	BondDouble
	BondTriple
	BondQuadruple
	BondAromatic
)

// valence contribution of a bond, in half units so aromatic bonds stay integral.
func (o BondOrder) halfValence() int {
	switch o {
	case BondDouble:
		return 4
	case BondTriple:
		return 6
	case BondQuadruple:
		return 8
	case BondAromatic:
		return 3
	}
	return 2
}

type Atom struct {
	Symbol    string
	AtomicNum int
	Isotope   int
	Charge    int
	Aromatic  bool
	// ExplicitH is set for bracket atoms; organic-subset atoms get implicit H.
	ExplicitH int
	Bracket   bool
	InRing    bool

	TotalH int
}

type Bond struct {
	Src, Dst int
	Order    BondOrder
	InRing   bool
}

// Molecule is the heavy-atom graph parsed from a structure string.
type Molecule struct {
	Atoms []Atom
	Bonds []Bond
	// adjacency: atom -> incident bond indices
	adj [][]int
}

func (m *Molecule) Neighbors(atom int) []int { return m.adj[atom] }

// Other returns the atom on the far side of bond b from atom.
func (m *Molecule) Other(b, atom int) int {
	if m.Bonds[b].Src == atom {
		return m.Bonds[b].Dst
	}
	return m.Bonds[b].Src
}

var elements = map[string]int{
	"H": 1, "He": 2, "Li": 3, "Be": 4, "B": 5, "C": 6, "N": 7, "O": 8, "F": 9, "Ne": 10,
	"Na": 11, "Mg": 12, "Al": 13, "Si": 14, "P": 15, "S": 16, "Cl": 17, "Ar": 18, "K": 19, "Ca": 20,
	"Ti": 22, "V": 23, "Cr": 24, "Mn": 25, "Fe": 26, "Co": 27, "Ni": 28, "Cu": 29, "Zn": 30,
	"Ga": 31, "Ge": 32, "As": 33, "Se": 34, "Br": 35, "Kr": 36, "Rb": 37, "Sr": 38, "Zr": 40,
	"Mo": 42, "Ru": 44, "Rh": 45, "Pd": 46, "Ag": 47, "Cd": 48, "In": 49, "Sn": 50, "Sb": 51,
	"Te": 52, "I": 53, "Xe": 54, "Cs": 55, "Ba": 56, "Gd": 64, "W": 74, "Re": 75, "Os": 76,
	"Ir": 77, "Pt": 78, "Au": 79, "Hg": 80, "Tl": 81, "Pb": 82, "Bi": 83, "Ra": 88, "U": 92,
}

// default valences of the organic subset, ascending.
var organicValences = map[int][]int{
	5: {3}, 6: {4}, 7: {3, 5}, 8: {2}, 15: {3, 5}, 16: {2, 4, 6},
	9: {1}, 17: {1}, 35: {1}, 53: {1},
}

var chiralClasses = map[string]bool{"TH": true, "AL": true, "SP": true, "TB": true, "OH": true}

var aromaticSymbols = map[string]bool{"b": true, "c": true, "n": true, "o": true, "p": true, "s": true, "se": true, "as": true}

type ringOpen struct {
	atom  int
	order BondOrder
	set   bool
}

// ParseSMILES parses a SMILES string into a Molecule. Stereo and atom-class
// annotations are accepted and ignored.
func ParseSMILES(smiles string) (*Molecule, error) {
	if smiles == "" {
		return nil, fmt.Errorf("empty structure string")
	}
	m := &Molecule{}
	var (
		branches []int
		rings    = map[int]ringOpen{}
		prev     = -1
		order    BondOrder
		orderSet bool
	)

	addAtom := func(a Atom) {
		idx := len(m.Atoms)
		m.Atoms = append(m.Atoms, a)
		m.adj = append(m.adj, nil)
		if prev >= 0 {
			m.addBond(prev, idx, resolveOrder(order, orderSet, m.Atoms[prev], a))
		}
		prev = idx
		orderSet = false
	}

	rs := []rune(smiles)
	for i := 0; i < len(rs); {
		ch := rs[i]
		switch {
		case ch == '(':
			if prev < 0 {
				return nil, fmt.Errorf("branch opened before any atom at position %d", i)
			}
			branches = append(branches, prev)
			i++
		case ch == ')':
			if len(branches) == 0 {
				return nil, fmt.Errorf("unbalanced ')' at position %d", i)
			}
			if orderSet {
				return nil, fmt.Errorf("dangling bond before ')' at position %d", i)
			}
			prev = branches[len(branches)-1]
			branches = branches[:len(branches)-1]
			i++
		case ch == '-' || ch == '=' || ch == '#' || ch == '$' || ch == ':' || ch == '/' || ch == '\\':
			if prev < 0 {
				return nil, fmt.Errorf("bond %q without preceding atom at position %d", ch, i)
			}
			if orderSet {
				return nil, fmt.Errorf("consecutive bond symbols at position %d", i)
			}
			order, orderSet = bondSymbol(ch), true
			i++
		case ch == '.':
			if orderSet {
				return nil, fmt.Errorf("dangling bond before '.' at position %d", i)
			}
			prev = -1
			i++
		case ch == '%' || unicode.IsDigit(ch):
			if prev < 0 {
				return nil, fmt.Errorf("ring closure without preceding atom at position %d", i)
			}
			label, adv, err := ringLabel(rs, i)
			if err != nil {
				return nil, err
			}
			if open, ok := rings[label]; ok {
				if open.atom == prev {
					return nil, fmt.Errorf("ring closure %d bonds atom to itself", label)
				}
				o, set := order, orderSet
				if !set && open.set {
					o, set = open.order, true
				}
				m.addBond(open.atom, prev, resolveOrder(o, set, m.Atoms[open.atom], m.Atoms[prev]))
				delete(rings, label)
			} else {
				rings[label] = ringOpen{atom: prev, order: order, set: orderSet}
			}
			orderSet = false
			i += adv
		case ch == '[':
			j := i + 1
			for j < len(rs) && rs[j] != ']' {
				j++
			}
			if j >= len(rs) {
				return nil, fmt.Errorf("unclosed bracket atom at position %d", i)
			}
			a, err := parseBracketAtom(string(rs[i+1 : j]))
			if err != nil {
				return nil, fmt.Errorf("bracket atom at position %d: %w", i, err)
			}
			addAtom(a)
			i = j + 1
		case ch == '*' || unicode.IsLetter(ch):
			a, adv, err := parseOrganicAtom(rs, i)
			if err != nil {
				return nil, err
			}
			addAtom(a)
			i += adv
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
		}
	}

	if len(branches) > 0 {
		return nil, fmt.Errorf("%d unclosed branch(es)", len(branches))
	}
	if len(rings) > 0 {
		return nil, fmt.Errorf("%d unclosed ring bond(s)", len(rings))
	}
	if orderSet {
		return nil, fmt.Errorf("structure string ends with a bond")
	}
	if len(m.Atoms) == 0 {
		return nil, fmt.Errorf("no atoms in structure string")
	}

	m.perceiveRings()
	m.aromatizeKekule()
	m.assignHydrogens()
	return m, nil
}

func (m *Molecule) addBond(a, b int, o BondOrder) {
	idx := len(m.Bonds)
	m.Bonds = append(m.Bonds, Bond{Src: a, Dst: b, Order: o})
	m.adj[a] = append(m.adj[a], idx)
	m.adj[b] = append(m.adj[b], idx)
}

func bondSymbol(ch rune) BondOrder {
	switch ch {
	case '=':
		return BondDouble
	case '#':
		return BondTriple
	case '$':
		return BondQuadruple
	case ':':
		return BondAromatic
	}
	return BondSingle
}

func resolveOrder(o BondOrder, set bool, a, b Atom) BondOrder {
	if set {
		return o
	}
	if a.Aromatic && b.Aromatic {
		return BondAromatic
	}
	return BondSingle
}

func ringLabel(rs []rune, i int) (label, advance int, err error) {
	if rs[i] != '%' {
		return int(rs[i] - '0'), 1, nil
	}
	if i+2 >= len(rs) || !unicode.IsDigit(rs[i+1]) || !unicode.IsDigit(rs[i+2]) {
		return 0, 0, fmt.Errorf("malformed %%nn ring closure at position %d", i)
	}
	n, _ := strconv.Atoi(string(rs[i+1 : i+3]))
	return n, 3, nil
}

func parseOrganicAtom(rs []rune, i int) (Atom, int, error) {
	if rs[i] == '*' {
		return Atom{Symbol: "*"}, 1, nil
	}
	if i+1 < len(rs) {
		switch string(rs[i : i+2]) {
		case "Cl", "Br":
			sym := string(rs[i : i+2])
			return Atom{Symbol: sym, AtomicNum: elements[sym]}, 2, nil
		}
	}
	sym := string(rs[i])
	switch sym {
	case "B", "C", "N", "O", "P", "S", "F", "I":
		return Atom{Symbol: sym, AtomicNum: elements[sym]}, 1, nil
	case "b", "c", "n", "o", "p", "s":
		up := string(unicode.ToUpper(rs[i]))
		return Atom{Symbol: up, AtomicNum: elements[up], Aromatic: true}, 1, nil
	}
	return Atom{}, 0, fmt.Errorf("unknown organic-subset atom %q at position %d", sym, i)
}

func parseBracketAtom(content string) (Atom, error) {
	rs := []rune(content)
	a := Atom{Bracket: true}
	i := 0

	start := i
	for i < len(rs) && unicode.IsDigit(rs[i]) {
		i++
	}
	if i > start {
		a.Isotope, _ = strconv.Atoi(string(rs[start:i]))
	}

	if i >= len(rs) {
		return a, fmt.Errorf("missing element symbol in [%s]", content)
	}
	switch {
	case rs[i] == '*':
		a.Symbol = "*"
		i++
	case unicode.IsUpper(rs[i]):
		sym := string(rs[i])
		if i+1 < len(rs) && unicode.IsLower(rs[i+1]) {
			if _, ok := elements[sym+string(rs[i+1])]; ok {
				sym += string(rs[i+1])
			}
		}
		n, ok := elements[sym]
		if !ok {
			return a, fmt.Errorf("unknown element %q", sym)
		}
		a.Symbol, a.AtomicNum = sym, n
		i += len([]rune(sym))
	case unicode.IsLower(rs[i]):
		sym := string(rs[i])
		if i+1 < len(rs) && aromaticSymbols[string(rs[i:i+2])] {
			sym = string(rs[i : i+2])
		}
		if !aromaticSymbols[sym] {
			return a, fmt.Errorf("unknown aromatic element %q", sym)
		}
		up := string(unicode.ToUpper([]rune(sym)[0])) + sym[1:]
		a.Symbol, a.AtomicNum, a.Aromatic = up, elements[up], true
		i += len(sym)
	default:
		return a, fmt.Errorf("missing element symbol in [%s]", content)
	}

	if i < len(rs) && rs[i] == '@' {
		for i < len(rs) && rs[i] == '@' {
			i++
		}
		// extended chirality classes such as @TH1 or @SP2
		if i+1 < len(rs) && chiralClasses[string(rs[i:i+2])] {
			i += 2
			for i < len(rs) && unicode.IsDigit(rs[i]) {
				i++
			}
		}
	}

	if i < len(rs) && rs[i] == 'H' {
		i++
		a.ExplicitH = 1
		start := i
		for i < len(rs) && unicode.IsDigit(rs[i]) {
			i++
		}
		if i > start {
			a.ExplicitH, _ = strconv.Atoi(string(rs[start:i]))
		}
	}

	if i < len(rs) && (rs[i] == '+' || rs[i] == '-') {
		sign := 1
		if rs[i] == '-' {
			sign = -1
		}
		sym := rs[i]
		i++
		mag := 1
		start := i
		for i < len(rs) && unicode.IsDigit(rs[i]) {
			i++
		}
		if i > start {
			mag, _ = strconv.Atoi(string(rs[start:i]))
		} else {
			for i < len(rs) && rs[i] == sym {
				mag++
				i++
			}
		}
		a.Charge = sign * mag
	}

	if i < len(rs) && rs[i] == ':' {
		i++
		for i < len(rs) && unicode.IsDigit(rs[i]) {
			i++
		}
	}
	if i != len(rs) {
		return a, fmt.Errorf("unexpected %q in [%s]", string(rs[i:]), content)
	}
	return a, nil
}

// perceiveRings marks every bond that is not a bridge, and its atoms, as ring members.
func (m *Molecule) perceiveRings() {
	n := len(m.Atoms)
	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	bridge := make([]bool, len(m.Bonds))
	timer := 0

	var dfs func(u, parentBond int)
	dfs = func(u, parentBond int) {
		disc[u], low[u] = timer, timer
		timer++
		for _, b := range m.adj[u] {
			if b == parentBond {
				continue
			}
			v := m.Other(b, u)
			if disc[v] == -1 {
				dfs(v, b)
				low[u] = min(low[u], low[v])
				if low[v] > disc[u] {
					bridge[b] = true
				}
			} else {
				low[u] = min(low[u], disc[v])
			}
		}
	}
	for u := 0; u < n; u++ {
		if disc[u] == -1 {
			dfs(u, -1)
		}
	}
	for b := range m.Bonds {
		if !bridge[b] {
			m.Bonds[b].InRing = true
			m.Atoms[m.Bonds[b].Src].InRing = true
			m.Atoms[m.Bonds[b].Dst].InRing = true
		}
	}
}

func (m *Molecule) bondBetween(a, b int) int {
	for _, bond := range m.adj[a] {
		if m.Other(bond, a) == b {
			return bond
		}
	}
	return -1
}

// sixRings returns every 6-membered cycle of ring bonds, each once, starting
// from its lowest atom index.
func (m *Molecule) sixRings() [][]int {
	var out [][]int
	path := make([]int, 0, 6)
	onPath := make([]bool, len(m.Atoms))

	var walk func(start, u int)
	walk = func(start, u int) {
		for _, b := range m.adj[u] {
			if !m.Bonds[b].InRing {
				continue
			}
			v := m.Other(b, u)
			if v == start && len(path) == 6 {
				// both directions reach start; keep one
				if path[1] < path[5] {
					out = append(out, slices.Clone(path))
				}
				continue
			}
			if v <= start || onPath[v] || len(path) == 6 {
				continue
			}
			path = append(path, v)
			onPath[v] = true
			walk(start, v)
			path = path[:len(path)-1]
			onPath[v] = false
		}
	}
	for start := range m.Atoms {
		if !m.Atoms[start].InRing {
			continue
		}
		path = append(path[:0], start)
		onPath[start] = true
		walk(start, start)
		onPath[start] = false
	}
	return out
}

// aromatizeKekule rewrites alternating six-membered carbon/nitrogen rings as
// aromatic, so Kekulé and aromatic spellings of the same ring encode alike.
// Fused rings are handled by repeating until no further ring qualifies. Any
// aromatic bond left outside a ring becomes single.
func (m *Molecule) aromatizeKekule() {
	rings := m.sixRings()
	done := make([]bool, len(rings))
	for changed := true; changed; {
		changed = false
		for r, ring := range rings {
			if done[r] || !m.kekuleAromatic(ring) {
				continue
			}
			for i, a := range ring {
				m.Atoms[a].Aromatic = true
				m.Bonds[m.bondBetween(a, ring[(i+1)%6])].Order = BondAromatic
			}
			done[r], changed = true, true
		}
	}
	for b := range m.Bonds {
		if m.Bonds[b].Order == BondAromatic && !m.Bonds[b].InRing {
			m.Bonds[b].Order = BondSingle
		}
	}
}

// kekuleAromatic reports whether every atom of ring is a carbon or nitrogen
// whose single double bond lies inside the ring, or which is already aromatic.
func (m *Molecule) kekuleAromatic(ring []int) bool {
	var ringBonds [6]int
	for i, a := range ring {
		ringBonds[i] = m.bondBetween(a, ring[(i+1)%6])
	}
	for _, a := range ring {
		if n := m.Atoms[a].AtomicNum; n != 6 && n != 7 {
			return false
		}
		doubles, aromatic, inside := 0, 0, false
		for _, b := range m.adj[a] {
			switch m.Bonds[b].Order {
			case BondDouble:
				doubles++
				inside = inside || slices.Contains(ringBonds[:], b)
			case BondAromatic:
				aromatic++
			case BondTriple, BondQuadruple:
				return false
			}
		}
		switch {
		case doubles > 1:
			return false
		case doubles == 1 && !inside:
			return false
		case doubles == 0 && aromatic == 0:
			return false
		}
	}
	return true
}

func (m *Molecule) assignHydrogens() {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Bracket {
			a.TotalH = a.ExplicitH
			continue
		}
		valences, ok := organicValences[a.AtomicNum]
		if !ok {
			continue
		}
		half := 0
		aromaticBonds := 0
		for _, b := range m.adj[i] {
			if m.Bonds[b].Order == BondAromatic {
				aromaticBonds++
				continue
			}
			half += m.Bonds[b].Order.halfValence()
		}
		used := half / 2
		if aromaticBonds > 0 {
			used += aromaticBonds + 1
		}
		for _, v := range valences {
			if v >= used {
				a.TotalH = v - used
				break
			}
		}
	}
}
