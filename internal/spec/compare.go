package spec

import (
	"cmp"
	"errors"
	"fmt"
)

// Ordering is the result of a three-way comparison.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Greater:
		return "greater"
	}
	return "equal"
}

// Compare orders a and b lexicographically by (Major, Minor).
func Compare(a, b Version) Ordering {
	if c := cmp.Compare(a.Major, b.Major); c != 0 {
		return Ordering(c)
	}
	return Ordering(cmp.Compare(a.Minor, b.Minor))
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool { return Compare(v, other) == Less }

// Greater reports whether v sorts after other.
func (v Version) Greater(other Version) bool { return Compare(v, other) == Greater }

// LessOrEqual reports whether v does not sort after other.
func (v Version) LessOrEqual(other Version) bool { return Compare(v, other) != Greater }

// GreaterOrEqual reports whether v does not sort before other.
func (v Version) GreaterOrEqual(other Version) bool { return Compare(v, other) != Less }

// Equal reports whether both components match.
func (v Version) Equal(other Version) bool { return v == other }

// ErrDeprecatedProperty is matched by every DeprecatedPropertyError.
var ErrDeprecatedProperty = errors.New("deprecated spec property")

// DeprecatedPropertyError is raised by manifest readers when a field that was
// deprecated as of Since is used by a manifest declaring Since or later.
type DeprecatedPropertyError struct {
	Property string
	Since    Version
}

func (e *DeprecatedPropertyError) Error() string {
	return fmt.Sprintf(
		"The property %q is deprecated in the spec version %s and will be removed completely in the future.",
		e.Property, e.Since,
	)
}

// Is reports whether target is ErrDeprecatedProperty.
func (e *DeprecatedPropertyError) Is(target error) bool {
	return target == ErrDeprecatedProperty
}
