package entities

import "strings"

const (
	minHashLength = 7
	maxHashLength = 40
	shortHashLen  = 7
)

// RefKind tells what a reference string points at.
type RefKind string

const (
	RefKindHash    RefKind = "hash"
	RefKindTag     RefKind = "tag"
	RefKindBranch  RefKind = "branch"
	RefKindUnknown RefKind = "unknown"
)

// IsContentHash reports whether value is an abbreviated or full commit hash:
// 7 to 40 hexadecimal characters, optionally preceded by a single "v" or "V".
func IsContentHash(value string) bool {
	value = stripVersionPrefix(value)
	if len(value) < minHashLength || len(value) > maxHashLength {
		return false
	}
	for _, c := range value {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}

// ClassifyLocal classifies a reference without any network access.
// Everything that is not a content hash is RefKindUnknown until a remote lookup says otherwise.
func ClassifyLocal(ref string) RefKind {
	if IsContentHash(ref) {
		return RefKindHash
	}
	return RefKindUnknown
}

// ShortHash returns the display form of a commit hash.
func ShortHash(hash string) string {
	hash = stripVersionPrefix(hash)
	if len(hash) <= shortHashLen {
		return hash
	}
	return hash[:shortHashLen]
}

// SameCommit compares two hashes, allowing either side to be abbreviated.
func SameCommit(a, b string) bool {
	a = stripVersionPrefix(a)
	b = stripVersionPrefix(b)
	if len(a) < minHashLength || len(b) < minHashLength {
		return false
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return strings.EqualFold(a, b[:len(a)])
}

func stripVersionPrefix(value string) string {
	if len(value) > 0 && (value[0] == 'v' || value[0] == 'V') {
		return value[1:]
	}
	return value
}
