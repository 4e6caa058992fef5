package analyzer

import (
	"regexp"
	"strings"
)

var (
	implForRe   = regexp.MustCompile(`impl(?:<[^>]*>)?\s+[\w:]+(?:<[^>]*>)?\s+for\s+([\w:]+(?:<[^>]*>)?)`)
	implBareRe  = regexp.MustCompile(`impl(?:<[^>]*>)?\s+([\w:]+(?:<[^>]*>)?)`)
	paramBindRe = regexp.MustCompile(`(?m)^\s*([A-Z][A-Za-z0-9_]*)\s*=\s*(.+?)\s*,?\s*$`)
)

// resolveGenericParameters substitutes generic parameter names in oracle
// signature text using sibling metadata lines. The oracle's hover text for a
// generic method call often leaves `Self` and single-letter parameters
// unresolved; the metadata block usually carries an impl header and
// `Name = Type` bindings that pin them down.
//
// Heuristic by nature. Self-substitution scrapes the first impl header it
// finds, which can pick the wrong type when several trait impls exist for
// the same method name; callers treat the output as best-effort text, never
// as ground truth.
func resolveGenericParameters(signatureText, metadataText string) string {
	out := signatureText
	if metadataText == "" {
		return out
	}

	if strings.Contains(out, "Self") {
		if target := scrapeImplTarget(metadataText); target != "" {
			out = replaceIdent(out, "Self", target)
		}
	}

	for _, m := range paramBindRe.FindAllStringSubmatch(metadataText, -1) {
		name, typ := m[1], strings.TrimSpace(m[2])
		if typ == "" || name == typ {
			continue
		}
		out = replaceIdent(out, name, typ)
	}
	return out
}

func scrapeImplTarget(metadataText string) string {
	if m := implForRe.FindStringSubmatch(metadataText); m != nil {
		return m[1]
	}
	if m := implBareRe.FindStringSubmatch(metadataText); m != nil {
		return m[1]
	}
	return ""
}

// replaceIdent replaces whole-identifier occurrences only, so substituting
// `B` does not mangle `Bounded`.
func replaceIdent(s, ident, with string) string {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(ident) + `\b`)
	return re.ReplaceAllString(s, with)
}

// returnTypeText extracts the text after the arrow of a method signature, or
// returns the input unchanged when it is already a plain type.
func returnTypeText(s string) string {
	if idx := strings.LastIndex(s, "->"); idx >= 0 {
		s = s[idx+2:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	s = strings.TrimSuffix(s, "{")
	return strings.TrimSpace(s)
}
