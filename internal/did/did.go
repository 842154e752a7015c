package did

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	// ErrInvalidDID indicates the scope or name is not a valid data identifier.
	ErrInvalidDID = errors.New("invalid DID")
)

const (
	MaxScopeLen = 25
	MaxNameLen  = 250
)

var (
	scopeRe = regexp.MustCompile(fmt.Sprintf(`^[A-Za-z0-9_.\-]{1,%d}$`, MaxScopeLen))
)

// DID is a scope-qualified data identifier.
type DID struct {
	Scope string `json:"scope"`
	Name  string `json:"name"`
}

func (d DID) String() string { return d.Scope + ":" + d.Name }

// Validate checks both scope and name.
func (d DID) Validate() error {
	if err := ValidateScope(d.Scope); err != nil {
		return err
	}
	return ValidateName(d.Name)
}

// Parse splits "scope:name" at the first colon.
func Parse(s string) (DID, error) {
	scope, name, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return DID{}, fmt.Errorf("%w: %q has no scope", ErrInvalidDID, s)
	}
	d := DID{Scope: scope, Name: name}
	if err := d.Validate(); err != nil {
		return DID{}, err
	}
	return d, nil
}

// ValidateScope asserts the scope uses [A-Za-z0-9_.-] and fits the length limit.
func ValidateScope(scope string) error {
	if !scopeRe.MatchString(scope) {
		return fmt.Errorf("%w: scope %q", ErrInvalidDID, scope)
	}
	return nil
}

// ValidateName rejects empty or over-long names, a leading slash, "." or
// ".." path segments, and any whitespace or control character.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLen {
		return fmt.Errorf("%w: name length %d", ErrInvalidDID, len(name))
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: name %q starts with /", ErrInvalidDID, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "." || seg == ".." {
			return fmt.Errorf("%w: name %q has a relative segment", ErrInvalidDID, name)
		}
	}
	if i := strings.IndexFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}); i >= 0 {
		return fmt.Errorf("%w: name %q has whitespace", ErrInvalidDID, name)
	}
	return nil
}

// DatasetName returns everything before the last slash of a DID name, which
// is the dataset the file is attached to. The name is not cleaned, so
// repeated slashes inside the head are kept. Examples:
//
//	"RECO/26.10/run1.root" -> "RECO/26.10"
//	"a//b/c"               -> "a//b"
//	"run1.root"            -> ""
func DatasetName(name string) string {
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return ""
	}
	head := name[:i+1]
	if trimmed := strings.TrimRight(head, "/"); trimmed != "" {
		return trimmed
	}
	return head
}
