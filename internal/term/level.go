package term

import (
	"fmt"
	"sort"
	"strings"
)

// LevelKind discriminates the universe level constructors.
type LevelKind int

const (
	LevelZero LevelKind = iota
	LevelSucc
	LevelMax
	LevelIMax
	LevelParam
)

// Level is a universe level expression. Levels form a join semilattice
// under Max; IMax is the impredicative variant that collapses to zero
// when its right operand is zero. Levels are immutable.
type Level struct {
	Left  *Level // Succ operand, or left operand of Max/IMax
	Right *Level // right operand of Max/IMax
	Name  Name   // parameter name for LevelParam
	Kind  LevelKind
}

// ZeroLevel is the shared bottom level.
var ZeroLevel = &Level{Kind: LevelZero}

// OneLevel is Succ(Zero), the universe of Prop-valued types' types.
var OneLevel = &Level{Kind: LevelSucc, Left: ZeroLevel}

// NewSucc returns the successor of l.
func NewSucc(l *Level) *Level {
	return &Level{Kind: LevelSucc, Left: l}
}

// NewMax returns the join of a and b.
func NewMax(a, b *Level) *Level {
	return &Level{Kind: LevelMax, Left: a, Right: b}
}

// NewIMax returns the impredicative join of a and b.
func NewIMax(a, b *Level) *Level {
	return &Level{Kind: LevelIMax, Left: a, Right: b}
}

// NewLevelParam returns the level parameter with the given name.
func NewLevelParam(name Name) *Level {
	return &Level{Kind: LevelParam, Name: name}
}

// LevelOfNat builds the concrete level n as an iterated successor.
func LevelOfNat(n int) *Level {
	l := ZeroLevel
	for i := 0; i < n; i++ {
		l = NewSucc(l)
	}

	return l
}

// ToNat reports the concrete value of the level if it contains no
// parameters, max, or imax nodes.
func (l *Level) ToNat() (int, bool) {
	n := 0

	for l.Kind == LevelSucc {
		n++
		l = l.Left
	}

	if l.Kind != LevelZero {
		return 0, false
	}

	return n, true
}

// IsZero reports whether the level is syntactically zero after
// normalization.
func (l *Level) IsZero() bool {
	n := l.Normalize()

	return n.Kind == LevelZero
}

// IsNonZero reports whether the level is provably nonzero for every
// parameter assignment.
func (l *Level) IsNonZero() bool {
	switch l.Kind {
	case LevelZero, LevelParam:
		return false
	case LevelSucc:
		return true
	case LevelMax:
		return l.Left.IsNonZero() || l.Right.IsNonZero()
	case LevelIMax:
		return l.Right.IsNonZero()
	default:
		return false
	}
}

// HasParam reports whether any level parameter occurs in l.
func (l *Level) HasParam() bool {
	switch l.Kind {
	case LevelParam:
		return true
	case LevelSucc:
		return l.Left.HasParam()
	case LevelMax, LevelIMax:
		return l.Left.HasParam() || l.Right.HasParam()
	default:
		return false
	}
}

// Instantiate substitutes the named parameters by the corresponding
// levels. The two slices must have equal length.
func (l *Level) Instantiate(params []Name, values []*Level) *Level {
	if !l.HasParam() {
		return l
	}

	switch l.Kind {
	case LevelParam:
		for i, p := range params {
			if p == l.Name {
				return values[i]
			}
		}

		return l
	case LevelSucc:
		return NewSucc(l.Left.Instantiate(params, values))
	case LevelMax:
		return NewMax(l.Left.Instantiate(params, values), l.Right.Instantiate(params, values))
	case LevelIMax:
		return NewIMax(l.Left.Instantiate(params, values), l.Right.Instantiate(params, values))
	default:
		return l
	}
}

// levelAtom is a normalized summand: base (zero or a parameter, or an
// irreducible imax) shifted by a constant offset.
type levelAtom struct {
	base   *Level
	offset int
}

// Normalize rewrites the level to a canonical form so that levels equal
// under the semilattice laws compare structurally equal. The form is a
// right-nested Max over atoms sorted by base, each atom an iterated
// Succ over zero, a parameter, or an irreducible IMax.
func (l *Level) Normalize() *Level {
	atoms := l.collectAtoms(0, nil)
	atoms = mergeAtoms(atoms)

	result := atomToLevel(atoms[0])
	for _, a := range atoms[1:] {
		result = &Level{Kind: LevelMax, Left: result, Right: atomToLevel(a)}
	}

	return result
}

func (l *Level) collectAtoms(offset int, acc []levelAtom) []levelAtom {
	switch l.Kind {
	case LevelZero:
		return append(acc, levelAtom{base: ZeroLevel, offset: offset})
	case LevelParam:
		return append(acc, levelAtom{base: l, offset: offset})
	case LevelSucc:
		return l.Left.collectAtoms(offset+1, acc)
	case LevelMax:
		acc = l.Left.collectAtoms(offset, acc)

		return l.Right.collectAtoms(offset, acc)
	case LevelIMax:
		// imax(a, 0) = 0, imax(a, succ b) = max(a, succ b),
		// imax(0, b) = b; otherwise the node is irreducible.
		right := l.Right.Normalize()
		if right.Kind == LevelZero {
			return append(acc, levelAtom{base: ZeroLevel, offset: offset})
		}

		left := l.Left.Normalize()
		if left.Kind == LevelZero {
			return right.collectAtoms(offset, acc)
		}

		if right.IsNonZero() {
			acc = left.collectAtoms(offset, acc)

			return right.collectAtoms(offset, acc)
		}

		return append(acc, levelAtom{base: &Level{Kind: LevelIMax, Left: left, Right: right}, offset: offset})
	default:
		return acc
	}
}

// mergeAtoms drops atoms subsumed by another atom on the same base and
// zero atoms dominated by any other atom, then sorts canonically.
func mergeAtoms(atoms []levelAtom) []levelAtom {
	byBase := make(map[string]levelAtom)
	for _, a := range atoms {
		key := a.base.String()
		if prev, ok := byBase[key]; !ok || a.offset > prev.offset {
			byBase[key] = a
		}
	}

	merged := make([]levelAtom, 0, len(byBase))
	for _, a := range byBase {
		merged = append(merged, a)
	}

	// A constant atom is subsumed by any other atom with an offset at
	// least as large, since every level is >= its offset.
	if len(merged) > 1 {
		filtered := merged[:0]

		for _, a := range merged {
			if a.base.Kind == LevelZero {
				dominated := false

				for _, b := range merged {
					if b.base.Kind != LevelZero && b.offset >= a.offset {
						dominated = true

						break
					}
				}

				if dominated {
					continue
				}
			}

			filtered = append(filtered, a)
		}

		merged = filtered
	}

	sort.Slice(merged, func(i, j int) bool {
		ki, kj := merged[i].base.String(), merged[j].base.String()
		if ki != kj {
			return ki < kj
		}

		return merged[i].offset < merged[j].offset
	})

	return merged
}

func atomToLevel(a levelAtom) *Level {
	l := a.base
	for i := 0; i < a.offset; i++ {
		l = NewSucc(l)
	}

	return l
}

// Eq reports structural equality of two levels without normalization.
func (l *Level) Eq(other *Level) bool {
	if l == other {
		return true
	}

	if l.Kind != other.Kind {
		return false
	}

	switch l.Kind {
	case LevelZero:
		return true
	case LevelParam:
		return l.Name == other.Name
	case LevelSucc:
		return l.Left.Eq(other.Left)
	case LevelMax, LevelIMax:
		return l.Left.Eq(other.Left) && l.Right.Eq(other.Right)
	default:
		return false
	}
}

// IsEquiv reports whether two levels are equal up to the semilattice
// laws, by comparing normal forms.
func (l *Level) IsEquiv(other *Level) bool {
	if l.Eq(other) {
		return true
	}

	return l.Normalize().Eq(other.Normalize())
}

// Leq conservatively reports whether l <= other holds for every
// parameter assignment. A false result means "not provably leq".
func (l *Level) Leq(other *Level) bool {
	return leqCore(l.Normalize(), other.Normalize(), 0)
}

// leqCore decides l + diff' <= r where diff tracks the offset balance
// (positive means the right side is ahead).
func leqCore(l, r *Level, diff int) bool {
	if l.Kind == LevelZero && diff >= 0 {
		return true
	}

	if l.Eq(r) && diff >= 0 {
		return true
	}

	switch {
	case l.Kind == LevelSucc:
		return leqCore(l.Left, r, diff-1)
	case r.Kind == LevelSucc:
		return leqCore(l, r.Left, diff+1)
	case l.Kind == LevelMax:
		return leqCore(l.Left, r, diff) && leqCore(l.Right, r, diff)
	case r.Kind == LevelMax:
		return leqCore(l, r.Left, diff) || leqCore(l, r.Right, diff)
	case l.Kind == LevelParam && r.Kind == LevelZero:
		return false
	case l.Kind == LevelParam && r.Kind == LevelParam:
		return l.Name == r.Name && diff >= 0
	default:
		return false
	}
}

func (l *Level) String() string {
	switch l.Kind {
	case LevelZero:
		return "0"
	case LevelParam:
		return l.Name.String()
	case LevelSucc:
		if n, ok := l.ToNat(); ok {
			return fmt.Sprintf("%d", n)
		}

		return l.Left.String() + "+1"
	case LevelMax:
		return "max(" + l.Left.String() + ", " + l.Right.String() + ")"
	case LevelIMax:
		return "imax(" + l.Left.String() + ", " + l.Right.String() + ")"
	default:
		return "?"
	}
}

// LevelsEq reports pairwise structural equality of two level lists.
func LevelsEq(a, b []*Level) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !a[i].Eq(b[i]) {
			return false
		}
	}

	return true
}

// LevelsEquiv reports pairwise equivalence of two level lists.
func LevelsEquiv(a, b []*Level) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !a[i].IsEquiv(b[i]) {
			return false
		}
	}

	return true
}

// FormatLevels renders a level list for diagnostics.
func FormatLevels(levels []*Level) string {
	if len(levels) == 0 {
		return ""
	}

	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = l.String()
	}

	return "{" + strings.Join(parts, ", ") + "}"
}
