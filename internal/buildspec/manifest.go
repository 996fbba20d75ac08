package buildspec

import (
	"bufio"
	"bytes"
	"os"
	"regexp"
	"strings"

	"github.com/kilnbuild/kiln/internal/errx"
)

// One dependency constraint from a manifest.
type Requirement struct {
	Name       string // Package name without extras.
	Extras     string // Comma-separated extras, without brackets (may be empty).
	Constraint string // Version constraint including the operator (may be empty).
	Marker     string // Environment marker after ";", kept raw (may be empty).
	Raw        string // The original manifest line, trimmed.
}

// An ordered list of dependency constraints read from a manifest file.
//
// The raw bytes are retained alongside the parsed entries: cache keys are
// computed over the bytes, so the key and the installed content cannot
// diverge through parser normalization.
type Manifest struct {
	Requirements []Requirement
	Raw          []byte
}

// Returns true when the manifest declares no dependencies.
func (m *Manifest) Empty() bool {
	return len(m.Requirements) == 0
}

// Splits one requirement line into name, extras, constraint, and marker.
//
//	name[extras] operator version ; marker
var requirementPattern = regexp.MustCompile(
	`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(\[[^\]]*\])?\s*((?:===|==|~=|!=|>=|<=|>|<)\s*[^;]*)?(;.*)?$`)

// Reads and parses a dependency manifest file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errx.Wrap(ErrManifestRead, err)
	}
	return ParseManifest(raw)
}

// Parses manifest bytes into an ordered requirement list.
//
// The accepted form is the plain requirements subset: one constraint per
// line, full-line and trailing "#" comments, blank lines, names with
// extras, and environment markers kept raw after ";". Installer directives
// (lines starting with "-") are rejected; the manifest must be a pure
// dependency list so installation stays a function of its contents.
func ParseManifest(raw []byte) (*Manifest, error) {
	m := &Manifest{Raw: raw}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "-") {
			return nil, errx.Wrapf(ErrManifestSyntax, "line %d: installer directive %q is not allowed", lineNo, line)
		}

		req, err := parseRequirement(line)
		if err != nil {
			return nil, errx.Wrapf(ErrManifestSyntax, "line %d: %w", lineNo, err)
		}
		m.Requirements = append(m.Requirements, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, errx.Wrap(ErrManifestRead, err)
	}

	return m, nil
}

// Parses a single requirement line.
func parseRequirement(line string) (Requirement, error) {
	match := requirementPattern.FindStringSubmatch(line)
	if match == nil {
		return Requirement{}, errx.Wrapf(ErrManifestSyntax, "cannot parse requirement %q", line)
	}

	req := Requirement{
		Name:       match[1],
		Constraint: strings.TrimSpace(match[3]),
		Raw:        line,
	}
	if match[2] != "" {
		req.Extras = strings.Trim(match[2], "[]")
	}
	if match[4] != "" {
		req.Marker = strings.TrimSpace(strings.TrimPrefix(match[4], ";"))
	}

	return req, nil
}

// Removes a full-line or trailing comment and surrounding whitespace.
//
// A "#" starts a comment at the beginning of a line or when preceded by
// whitespace; a "#" embedded in a token (e.g. a URL fragment) does not.
func stripComment(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return ""
	}
	for i := 1; i < len(line); i++ {
		if line[i] == '#' && (line[i-1] == ' ' || line[i-1] == '\t') {
			return strings.TrimSpace(line[:i])
		}
	}
	return line
}
