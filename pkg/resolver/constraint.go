package resolver

import (
	"fmt"
	"strconv"
	"strings"
)

// versionAtom is a single ">=", ">", "<=", "<", "=" comparison against a
// ComposerVersion. A bare version with no operator is treated as "=".
type versionAtom struct {
	op  string
	ver ComposerVersion
}

func (a versionAtom) matches(v ComposerVersion) bool {
	c := v.Compare(a.ver)
	switch a.op {
	case ">=":
		return c >= 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	case "<":
		return c < 0
	case "=":
		return c == 0
	case "!=":
		return c != 0
	}
	return false
}

func (a versionAtom) String() string {
	return a.op + a.ver.String()
}

// conjunction is an AND of atoms (e.g. the two bounds a caret range
// expands to). A candidate matches if every atom matches.
type conjunction []versionAtom

func (c conjunction) matches(v ComposerVersion) bool {
	for _, a := range c {
		if !a.matches(v) {
			return false
		}
	}
	return true
}

// ComposerConstraint is a disjunction of conjunctions: "1.0 || 2.0 - 3.0"
// parses into two conjunctions, either of which satisfies the
// constraint. This mirrors Composer's own constraint algebra (pool of
// "MultiConstraintConstraint" nodes joined by "Or"/"And").
type ComposerConstraint struct {
	clauses []conjunction
	devName string // non-empty when the whole constraint is "dev-<branch>"
	raw     string
}

func (c ComposerConstraint) String() string { return c.raw }

// Matches reports whether v satisfies the constraint.
func (c ComposerConstraint) Matches(v ComposerVersion) bool {
	if c.devName != "" {
		return v.IsDev && v.DevBranch == c.devName
	}
	if v.IsDev {
		return false
	}
	for _, clause := range c.clauses {
		if clause.matches(v) {
			return true
		}
	}
	return false
}

// ParseConstraint parses a Composer version constraint string. Supported
// grammar:
//
//	*                universal match
//	1.2.3            exact
//	dev-main         exact dev branch
//	>=1.2,<2.0       AND (comma or whitespace separated within a clause)
//	1.0 || 2.0       OR (clauses separated by "||")
//	^1.2.3           caret range:  [1.2.3, 2.0.0)   (or [0.2.3,0.3.0) below 1.0, etc.)
//	~1.2.3           tilde range:  [1.2.3, 1.3.0)
//	~1.2             tilde range:  [1.2.0, 2.0.0)
//	1.2.*            wildcard:     [1.2.0, 1.3.0)
//	1.2.3 - 2.0.0    inclusive range (hyphen with surrounding spaces)
func ParseConstraint(s string) (ComposerConstraint, error) {
	raw := s
	trimmed := strings.TrimSpace(s)
	if trimmed == "*" || trimmed == "" {
		return ComposerConstraint{clauses: []conjunction{{{op: ">=", ver: ComposerVersion{}}}}, raw: raw}, nil
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "dev-") {
		return ComposerConstraint{devName: trimmed[4:], raw: raw}, nil
	}

	var clauses []conjunction
	for _, orPart := range strings.Split(trimmed, "||") {
		orPart = strings.TrimSpace(orPart)
		if orPart == "" {
			continue
		}
		clause, err := parseConjunction(orPart)
		if err != nil {
			return ComposerConstraint{}, fmt.Errorf("constraint %q: %w", raw, err)
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 0 {
		return ComposerConstraint{}, fmt.Errorf("empty constraint: %q", raw)
	}
	return ComposerConstraint{clauses: clauses, raw: raw}, nil
}

func parseConjunction(s string) (conjunction, error) {
	if hi, lo, ok := splitHyphenRange(s); ok {
		hiV, err := ParseVersion(hi)
		if err != nil {
			return nil, err
		}
		loV, err := ParseVersion(lo)
		if err != nil {
			return nil, err
		}
		return conjunction{{op: ">=", ver: hiV}, {op: "<=", ver: loV}}, nil
	}

	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	var out conjunction
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		switch {
		case strings.HasPrefix(f, "^"):
			atoms, err := expandCaret(f[1:])
			if err != nil {
				return nil, err
			}
			out = append(out, atoms...)
		case strings.HasPrefix(f, "~"):
			atoms, err := expandTilde(f[1:])
			if err != nil {
				return nil, err
			}
			out = append(out, atoms...)
		case strings.HasSuffix(f, ".*") || strings.HasSuffix(f, ".x"):
			atoms, err := expandWildcard(strings.TrimSuffix(strings.TrimSuffix(f, ".*"), ".x"))
			if err != nil {
				return nil, err
			}
			out = append(out, atoms...)
		case strings.HasPrefix(f, ">="), strings.HasPrefix(f, "<="), strings.HasPrefix(f, "!="):
			op := f[:2]
			v, err := ParseVersion(f[2:])
			if err != nil {
				return nil, err
			}
			out = append(out, versionAtom{op: op, ver: v})
		case strings.HasPrefix(f, ">"), strings.HasPrefix(f, "<"), strings.HasPrefix(f, "="):
			op := f[:1]
			v, err := ParseVersion(f[1:])
			if err != nil {
				return nil, err
			}
			out = append(out, versionAtom{op: op, ver: v})
		default:
			v, err := ParseVersion(f)
			if err != nil {
				return nil, err
			}
			out = append(out, versionAtom{op: "=", ver: v})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no atoms parsed from %q", s)
	}
	return out, nil
}

func splitHyphenRange(s string) (lo, hi string, ok bool) {
	idx := strings.Index(s, " - ")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+3:]), true
}

// expandCaret expands "^1.2.3" into its upper/lower bound atoms following
// npm/Composer semantics: the upper bound bumps the left-most non-zero
// component, so ^0.2.3 -> [0.2.3,0.3.0), ^0.0.3 -> [0.0.3,0.0.4).
func expandCaret(s string) (conjunction, error) {
	v, explicit, err := parsePartialVersion(s)
	if err != nil {
		return nil, err
	}
	lower := v
	var upper ComposerVersion
	switch {
	case explicit >= 1 && v.Major > 0:
		upper = ComposerVersion{Major: v.Major + 1}
	case explicit >= 2 && v.Major == 0 && v.Minor > 0:
		upper = ComposerVersion{Major: 0, Minor: v.Minor + 1}
	case explicit >= 3 && v.Major == 0 && v.Minor == 0:
		upper = ComposerVersion{Major: 0, Minor: 0, Patch: v.Patch + 1}
	case v.Major > 0:
		upper = ComposerVersion{Major: v.Major + 1}
	case v.Minor > 0:
		upper = ComposerVersion{Major: 0, Minor: v.Minor + 1}
	default:
		upper = ComposerVersion{Major: 0, Minor: 0, Patch: v.Patch + 1}
	}
	return conjunction{{op: ">=", ver: lower}, {op: "<", ver: upper}}, nil
}

// expandTilde expands "~1.2.3" -> [1.2.3,1.3.0) and "~1.2" -> [1.2.0,2.0.0):
// the last specified component is allowed to vary, the one above it is not.
func expandTilde(s string) (conjunction, error) {
	v, explicit, err := parsePartialVersion(s)
	if err != nil {
		return nil, err
	}
	var upper ComposerVersion
	switch explicit {
	case 1:
		upper = ComposerVersion{Major: v.Major + 1}
	case 2:
		upper = ComposerVersion{Major: v.Major + 1}
	default:
		upper = ComposerVersion{Major: v.Major, Minor: v.Minor + 1}
	}
	return conjunction{{op: ">=", ver: v}, {op: "<", ver: upper}}, nil
}

// expandWildcard expands "1.2" (from "1.2.*") -> [1.2.0,1.3.0) and
// "1" (from "1.*") -> [1.0.0,2.0.0).
func expandWildcard(s string) (conjunction, error) {
	v, explicit, err := parsePartialVersion(s)
	if err != nil {
		return nil, err
	}
	var upper ComposerVersion
	switch explicit {
	case 1:
		upper = ComposerVersion{Major: v.Major + 1}
	default:
		upper = ComposerVersion{Major: v.Major, Minor: v.Minor + 1}
	}
	return conjunction{{op: ">=", ver: v}, {op: "<", ver: upper}}, nil
}

// parsePartialVersion parses a possibly-short numeric version ("1", "1.2",
// "1.2.3") and reports how many components were explicit.
func parsePartialVersion(s string) (ComposerVersion, int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return ComposerVersion{}, 0, fmt.Errorf("invalid partial version: %q", s)
	}
	var nums [4]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return ComposerVersion{}, 0, fmt.Errorf("invalid version component %q: %w", p, err)
		}
		nums[i] = n
	}
	return ComposerVersion{Major: nums[0], Minor: nums[1], Patch: nums[2], Build: nums[3]}, len(parts), nil
}
