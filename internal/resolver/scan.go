package resolver

import (
	"regexp"
	"strings"
)

// All positions returned here are 1-based line numbers; 0 means not found.

// FindSignature returns the first line containing signature verbatim.
func FindSignature(lines []string, signature string) int {
	for i, l := range lines {
		if strings.Contains(l, signature) {
			return i + 1
		}
	}
	return 0
}

// FindFunction locates a definition written in the
//
//	TYPE
//	name(args)
//	{
//	    ...
//	}
//
// layout: a line starting with "name(" whose previous line is exactly typ.
// end is the first line at or after start beginning with "}".
func FindFunction(lines []string, name, typ string) (start, end int) {
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(name) + `\(`)
	for i := 1; i < len(lines); i++ {
		if lines[i-1] == typ && re.MatchString(lines[i]) {
			start = i + 1
			break
		}
	}
	if start == 0 {
		return 0, 0
	}
	for i := start - 1; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "}") {
			return start, i + 1
		}
	}
	return start, 0
}

// FindAssignment returns the first line assigning to name.
func FindAssignment(lines []string, name string) int {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*=`)
	for i, l := range lines {
		if re.MatchString(l) {
			return i + 1
		}
	}
	return 0
}

var literalRe = regexp.MustCompile(`\s*"([^"]+)"`)

// Registration is a native call that gives a C global its Ruby name.
type Registration struct {
	Line       int
	PublicName string
	Parent     string // C identifier of the enclosing namespace, nested calls only
}

// registrationPatterns recognise "name = root(" and "name = nested(parent,"
// calls for one kind.
type registrationPatterns struct {
	root   []string
	nested []string
}

func (p registrationPatterns) compile(name string) (root, nested *regexp.Regexp) {
	n := regexp.QuoteMeta(name)
	root = regexp.MustCompile(`\b` + n + `\s*=\s*(?:` + strings.Join(p.root, "|") + `)\((?:"([^"]+)"|$)`)
	nested = regexp.MustCompile(`\b` + n + `\s*=\s*(?:` + strings.Join(p.nested, "|") + `)\(([^,]+),\s*(?:"([^"]+)"|$)`)
	return root, nested
}

// FindRegistration scans top to bottom for the first registration of name.
// When the call ends the line before its name literal, the literal is taken
// from the next line. ok is false when no registration exists; a call whose
// literal cannot be found is reported with an empty PublicName.
func (p registrationPatterns) FindRegistration(lines []string, name string) (reg Registration, ok bool) {
	rootRe, nestedRe := p.compile(name)
	for i, l := range lines {
		if m := rootRe.FindStringSubmatch(l); m != nil {
			reg = Registration{Line: i + 1, PublicName: m[1]}
			if reg.PublicName == "" {
				reg.PublicName = nextLiteral(lines, i)
			}
			return reg, true
		}
		if m := nestedRe.FindStringSubmatch(l); m != nil {
			reg = Registration{Line: i + 1, Parent: strings.TrimSpace(m[1]), PublicName: m[2]}
			if reg.PublicName == "" {
				reg.PublicName = nextLiteral(lines, i)
			}
			return reg, true
		}
	}
	return Registration{}, false
}

func nextLiteral(lines []string, i int) string {
	if i+1 >= len(lines) {
		return ""
	}
	if m := literalRe.FindStringSubmatch(lines[i+1]); m != nil {
		return m[1]
	}
	return ""
}
