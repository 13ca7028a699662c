// Package spec defines the versioned mod manifest specification and the
// comparison rules used to gate manifest fields across schema revisions.
package spec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultMajor = 1
	defaultMinor = 0
)

// Version is the (major, minor) version of the manifest specification.
// A Version is a value; it is never mutated after construction.
type Version struct {
	Major int
	Minor int
}

// Default is the specification version assumed when a manifest omits "spec".
var Default = Version{Major: defaultMajor, Minor: defaultMinor}

// BepInExGUID is specification version 1.2, which replaced the proprietary
// "mod_id" field with the plugin GUID ("id").
var BepInExGUID = Version{Major: 1, Minor: 2}

// ErrInvalidVersion is matched by every InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid spec version")

// InvalidVersionError reports text that is not of the form "major.minor".
type InvalidVersionError struct {
	Text string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("Invalid spec version: %s. The correct format is \"major.minor\".", e.Text)
}

// Is reports whether target is ErrInvalidVersion.
func (e *InvalidVersionError) Is(target error) bool {
	return target == ErrInvalidVersion
}

// New returns the Version major.minor.
//
// Postcondition: the fields are stored verbatim.
func New(major, minor int) Version {
	return Version{Major: major, Minor: minor}
}

// Parse parses an optional version string. A nil text yields Default.
//
// Postcondition: Returns a Version or an *InvalidVersionError; never a partial result.
func Parse(text *string) (Version, error) {
	if text == nil {
		return Default, nil
	}
	return ParseString(*text)
}

// ParseString parses text of the exact form "major.minor" where both parts
// are unsigned decimal integers.
//
// Postcondition: Returns a Version or an *InvalidVersionError.
func ParseString(text string) (Version, error) {
	parts := strings.Split(text, ".")
	if len(parts) != 2 {
		return Version{}, &InvalidVersionError{Text: text}
	}
	major, ok := parseComponent(parts[0])
	if !ok {
		return Version{}, &InvalidVersionError{Text: text}
	}
	minor, ok := parseComponent(parts[1])
	if !ok {
		return Version{}, &InvalidVersionError{Text: text}
	}
	return Version{Major: major, Minor: minor}, nil
}

// MustParse is like ParseString but panics on malformed input.
// It is intended for constants and tests.
func MustParse(text string) Version {
	v, err := ParseString(text)
	if err != nil {
		panic(err)
	}
	return v
}

// parseComponent accepts only ASCII digits so that signs, spaces, and other
// forms strconv would tolerate are rejected.
func parseComponent(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// String renders the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// UnmarshalYAML reads the version from the scalar's literal text, so both
// `spec: 1.2` and `spec: "1.2"` decode the same way. JSON manifests decode
// through the same path.
func (v *Version) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return &InvalidVersionError{Text: fmt.Sprintf("<%s>", nodeKind(node.Kind))}
	}
	parsed, err := ParseString(node.Value)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML renders the version as a quoted "major.minor" string.
func (v Version) MarshalYAML() (interface{}, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Style: yaml.DoubleQuotedStyle, Value: v.String()}, nil
}

// UnmarshalJSON accepts either a JSON string ("1.2") or a bare number (1.2),
// reading the literal text in both cases.
func (v *Version) UnmarshalJSON(data []byte) error {
	text := string(bytes.TrimSpace(data))
	if len(text) > 0 && text[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return &InvalidVersionError{Text: string(data)}
		}
	}
	parsed, err := ParseString(text)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON renders the version as a "major.minor" JSON string.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func nodeKind(k yaml.Kind) string {
	switch k {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	}
	return "scalar"
}
