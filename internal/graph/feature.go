package graph

import (
	"sort"
	"strings"
	"unicode"

	"github.com/codeintel/engine/internal/symbol"
)

// knownVerbs recognizes common verb prefixes so a symbol name can be turned
// into a verb-object feature label (e.g. "ValidateToken" -> "validate-token").
var knownVerbs = map[string]bool{
	"get": true, "set": true, "new": true, "create": true,
	"delete": true, "remove": true, "update": true, "handle": true,
	"process": true, "validate": true, "parse": true, "format": true,
	"convert": true, "build": true, "init": true, "close": true,
	"open": true, "read": true, "write": true, "send": true,
	"start": true, "stop": true, "run": true, "execute": true,
	"check": true, "is": true, "has": true, "find": true, "search": true,
	"save": true, "load": true, "encode": true, "decode": true,
	"register": true, "add": true, "make": true, "do": true,
	"list": true, "count": true, "reset": true, "fetch": true,
	"apply": true, "resolve": true, "emit": true, "ensure": true,
	"compute": true, "extract": true, "index": true, "rebuild": true,
	"refresh": true, "compile": true, "configure": true,
}

// splitName splits a symbol name into words, handling camelCase, PascalCase,
// snake_case, and runs of uppercase letters (acronyms like ID, HTTP, URL).
func splitName(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	var words []string
	var current []rune
	runes := []rune(name)
	for i, r := range runes {
		if r == '_' || (!unicode.IsLetter(r) && !unicode.IsDigit(r)) {
			if len(current) > 0 {
				words = append(words, string(current))
				current = nil
			}
			continue
		}
		if unicode.IsUpper(r) {
			switch {
			case len(current) == 0:
				current = append(current, r)
			case !unicode.IsUpper(current[len(current)-1]):
				words = append(words, string(current))
				current = []rune{r}
			case i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				words = append(words, string(current))
				current = []rune{r}
			default:
				current = append(current, r)
			}
			continue
		}
		current = append(current, r)
	}
	if len(current) > 0 {
		words = append(words, string(current))
	}
	return words
}

func buildLabel(words []string) string {
	if len(words) > 4 {
		words = words[:4]
	}
	return strings.Join(words, "-")
}

// featureLabel derives a verb-object feature label from a symbol name, e.g.
// "ValidateToken" -> "validate-token", "Server" -> "operate-server".
func featureLabel(name string) string {
	words := splitName(name)
	if len(words) == 0 {
		return "unknown"
	}
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}
	if knownVerbs[lower[0]] {
		return buildLabel(lower)
	}
	for i, w := range lower {
		if knownVerbs[w] {
			reordered := append([]string{w}, lower[:i]...)
			reordered = append(reordered, lower[i+1:]...)
			return buildLabel(reordered)
		}
	}
	return buildLabel(append([]string{"operate"}, lower...))
}

const summaryFeatureCount = 3

// fileSummary joins the feature labels of up to summaryFeatureCount distinct
// functions/methods in a file into the short free-text description carried
// by RepoMapEntry.SymbolSummary, sorted for determinism regardless of the
// order the store returned symbols in.
func fileSummary(syms []symbol.Symbol) string {
	seen := make(map[string]bool)
	var labels []string
	for _, s := range syms {
		if s.Type != symbol.Function && s.Type != symbol.Method {
			continue
		}
		label := featureLabel(s.Name)
		if seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	if len(labels) == 0 {
		return ""
	}
	sort.Strings(labels)
	if len(labels) > summaryFeatureCount {
		labels = labels[:summaryFeatureCount]
	}
	return strings.Join(labels, ", ")
}
