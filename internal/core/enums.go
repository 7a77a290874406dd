package core

import (
	"fmt"
	"strings"
)

// Sex is the closed set of recorded sexes.
type Sex string

const (
	SexUnknown Sex = "Unknown"
	SexMale    Sex = "Male"
	SexFemale  Sex = "Female"
	SexOther   Sex = "Other"
)

// BloodGroup is one of the eight ABO/Rh groups.
type BloodGroup string

const (
	BloodGroupUnknown BloodGroup = "Unknown"
	BloodGroupAPos    BloodGroup = "A+"
	BloodGroupANeg    BloodGroup = "A-"
	BloodGroupBPos    BloodGroup = "B+"
	BloodGroupBNeg    BloodGroup = "B-"
	BloodGroupABPos   BloodGroup = "AB+"
	BloodGroupABNeg   BloodGroup = "AB-"
	BloodGroupOPos    BloodGroup = "O+"
	BloodGroupONeg    BloodGroup = "O-"
)

// MaritalStatus of a person.
type MaritalStatus string

const (
	MaritalUnknown  MaritalStatus = "Unknown"
	MaritalSingle   MaritalStatus = "Single"
	MaritalMarried  MaritalStatus = "Married"
	MaritalDivorced MaritalStatus = "Divorced"
	MaritalWidowed  MaritalStatus = "Widowed"
)

// Status is the employment status of a faculty member.
type Status string

const (
	StatusUnknown    Status = "Unknown"
	StatusActive     Status = "Active"
	StatusInactive   Status = "Inactive"
	StatusTerminated Status = "Terminated"
)

// DesignationKind separates academic ranks from administrative posts.
type DesignationKind string

const (
	DesignationAcademic       DesignationKind = "academic"
	DesignationAdministrative DesignationKind = "administrative"
)

// QualificationCategory mirrors the two qualification column groups.
type QualificationCategory string

const (
	QualificationEducational  QualificationCategory = "Educational"
	QualificationProfessional QualificationCategory = "Professional"
)

// enumAlias maps a folded spelling to a canonical value.
type enumAlias[T ~string] struct {
	key   string
	value T
}

var sexAliases = []enumAlias[Sex]{
	{"male", SexMale}, {"m", SexMale}, {"man", SexMale},
	{"female", SexFemale}, {"f", SexFemale}, {"woman", SexFemale},
	{"other", SexOther}, {"o", SexOther}, {"x", SexOther}, {"nonbinary", SexOther},
}

var bloodGroupAliases = buildBloodGroupAliases()

var maritalAliases = []enumAlias[MaritalStatus]{
	{"single", MaritalSingle}, {"unmarried", MaritalSingle}, {"s", MaritalSingle},
	{"married", MaritalMarried}, {"m", MaritalMarried},
	{"divorced", MaritalDivorced}, {"separated", MaritalDivorced}, {"d", MaritalDivorced},
	{"widowed", MaritalWidowed}, {"widow", MaritalWidowed}, {"widower", MaritalWidowed}, {"w", MaritalWidowed},
}

var statusAliases = []enumAlias[Status]{
	{"active", StatusActive}, {"working", StatusActive}, {"onduty", StatusActive}, {"regular", StatusActive},
	{"inactive", StatusInactive}, {"onleave", StatusInactive}, {"leave", StatusInactive}, {"resigned", StatusInactive}, {"retired", StatusInactive},
	{"terminated", StatusTerminated}, {"dismissed", StatusTerminated}, {"fired", StatusTerminated},
}

func buildBloodGroupAliases() []enumAlias[BloodGroup] {
	groups := []struct {
		letters  []string
		pos, neg BloodGroup
	}{
		{[]string{"a"}, BloodGroupAPos, BloodGroupANeg},
		{[]string{"b"}, BloodGroupBPos, BloodGroupBNeg},
		{[]string{"ab"}, BloodGroupABPos, BloodGroupABNeg},
		{[]string{"o", "0"}, BloodGroupOPos, BloodGroupONeg},
	}
	posSuffixes := []string{"+", "+ve", "ve+", "pos", "positive", "(+)", "(+ve)"}
	negSuffixes := []string{"-", "-ve", "ve-", "neg", "negative", "(-)", "(-ve)"}

	var out []enumAlias[BloodGroup]
	for _, g := range groups {
		for _, l := range g.letters {
			for _, s := range posSuffixes {
				out = append(out, enumAlias[BloodGroup]{l + s, g.pos})
			}
			for _, s := range negSuffixes {
				out = append(out, enumAlias[BloodGroup]{l + s, g.neg})
			}
		}
	}
	return out
}

// foldEnumKey lowercases and drops spaces, dots, and underscores so
// "A +ve", "a+ve" and "A_+VE" compare equal.
func foldEnumKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '\t', '.', '_', '\u00a0':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// matchEnum resolves raw against aliases: exact first, then a prefix that
// selects exactly one canonical value. Empty or "unknown" input is Unknown
// with no error.
func matchEnum[T ~string](raw string, aliases []enumAlias[T], unknown T) (T, error) {
	raw = CleanCell(raw)
	if isPlaceholder(raw) {
		return unknown, nil
	}
	key := foldEnumKey(raw)
	if key == "" || key == "unknown" {
		return unknown, nil
	}

	for _, a := range aliases {
		if a.key == key {
			return a.value, nil
		}
	}

	var found []T
	for _, a := range aliases {
		if !strings.HasPrefix(a.key, key) {
			continue
		}
		dup := false
		for _, v := range found {
			if v == a.value {
				dup = true
				break
			}
		}
		if !dup {
			found = append(found, a.value)
		}
	}

	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return unknown, fmt.Errorf("%w: %q is not recognised", ErrInvalidEnum, raw)
	default:
		return unknown, fmt.Errorf("%w: %q is ambiguous", ErrInvalidEnum, raw)
	}
}

// NormalizeSex maps free text to a Sex.
func NormalizeSex(raw string) (Sex, error) {
	return matchEnum(raw, sexAliases, SexUnknown)
}

// NormalizeBloodGroup maps spellings like "B +ve" or "ab negative" to a group.
func NormalizeBloodGroup(raw string) (BloodGroup, error) {
	return matchEnum(raw, bloodGroupAliases, BloodGroupUnknown)
}

// NormalizeMaritalStatus maps free text to a MaritalStatus.
func NormalizeMaritalStatus(raw string) (MaritalStatus, error) {
	return matchEnum(raw, maritalAliases, MaritalUnknown)
}

// NormalizeStatus maps free text to an employment Status.
func NormalizeStatus(raw string) (Status, error) {
	return matchEnum(raw, statusAliases, StatusUnknown)
}
