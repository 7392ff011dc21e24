// Package address implements the canonical symbol address format
// <project>/<filePath>#<NodeKind>:<SymbolName> used to identify every node
// in the graph. Encoding and decoding are pure functions; decoding never
// fails with an error; callers branch on Parsed.IsValid.
package address

import (
	"regexp"
	"strings"
)

var addressRE = regexp.MustCompile(`^([^/]+)/(.+)#([^:]+):(.+)$`)

// Parsed is the result of decoding an address string. When IsValid is false
// the field values are undefined and Errors explains why.
type Parsed struct {
	Project    string
	FilePath   string
	Kind       NodeKind
	SymbolName string
	IsValid    bool
	Errors     []string
}

// String re-serializes the parsed address into canonical form.
func (p Parsed) String() string {
	return Create(p.Project, p.FilePath, p.Kind, p.SymbolName)
}

// Create builds a canonical address string. File path separators are
// normalized to forward slashes. Create never fails; callers are expected
// to pass a valid kind.
func Create(project, filePath string, kind NodeKind, symbolName string) string {
	normalized := strings.ReplaceAll(filePath, "\\", "/")
	return project + "/" + normalized + "#" + string(kind) + ":" + symbolName
}

// Parse decodes an address string. It never returns an error: a malformed
// input, an empty symbol name, or an unknown node kind yields IsValid=false
// with at least one entry in Errors.
func Parse(raw string) Parsed {
	normalized := strings.ReplaceAll(raw, "\\", "/")
	matches := addressRE.FindStringSubmatch(normalized)
	if matches == nil {
		return Parsed{
			IsValid: false,
			Errors:  []string{"address does not match <project>/<filePath>#<NodeKind>:<SymbolName>"},
		}
	}

	p := Parsed{
		Project:    matches[1],
		FilePath:   matches[2],
		Kind:       NodeKind(matches[3]),
		SymbolName: matches[4],
		IsValid:    true,
	}

	if strings.TrimSpace(p.SymbolName) == "" {
		p.IsValid = false
		p.Errors = append(p.Errors, "symbol name must not be empty")
	}
	if !p.Kind.IsValid() {
		p.IsValid = false
		p.Errors = append(p.Errors, "unknown node kind: "+string(p.Kind))
	}
	return p
}

// Validate reports whether raw is a well-formed address.
func Validate(raw string) (bool, []string) {
	p := Parse(raw)
	return p.IsValid, p.Errors
}

// Normalize re-serializes raw after path normalization. Invalid addresses
// are returned unchanged. Normalize is idempotent.
func Normalize(raw string) string {
	p := Parse(raw)
	if !p.IsValid {
		return raw
	}
	return p.String()
}

// Equal reports structural equality of two address strings: syntactically
// different inputs (e.g. differing slash direction) compare equal when their
// four fields match. Two invalid addresses are never equal.
func Equal(a, b string) bool {
	pa := Parse(a)
	pb := Parse(b)
	if !pa.IsValid || !pb.IsValid {
		return false
	}
	return pa.Project == pb.Project &&
		pa.FilePath == pb.FilePath &&
		pa.Kind == pb.Kind &&
		pa.SymbolName == pb.SymbolName
}

// FilePath extracts the file path field. The second return is false when the
// address fails validation; callers must check it instead of relying on a
// zero value.
func FilePath(raw string) (string, bool) {
	p := Parse(raw)
	if !p.IsValid {
		return "", false
	}
	return p.FilePath, true
}

// ProjectName extracts the project field of a valid address.
func ProjectName(raw string) (string, bool) {
	p := Parse(raw)
	if !p.IsValid {
		return "", false
	}
	return p.Project, true
}

// SymbolName extracts the symbol field of a valid address.
func SymbolName(raw string) (string, bool) {
	p := Parse(raw)
	if !p.IsValid {
		return "", false
	}
	return p.SymbolName, true
}

// Kind extracts the node kind of a valid address.
func Kind(raw string) (NodeKind, bool) {
	p := Parse(raw)
	if !p.IsValid {
		return "", false
	}
	return p.Kind, true
}
