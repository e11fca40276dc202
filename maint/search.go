package maint

import (
	"strings"

	"github.com/craigvc/cvcwebsolutions-sub003/cms"
)

// TermMatches is the result of matching one search term.
type TermMatches struct {
	Term    string
	Matches []cms.Doc
}

// MatchTerms reports, for each term independently, the docs whose field
// contains the term, ignoring case. A term with no hits has empty Matches.
func MatchTerms(docs []cms.Doc, field string, terms []string) []TermMatches {
	out := make([]TermMatches, 0, len(terms))
	for _, term := range terms {
		needle := strings.ToLower(term)
		tm := TermMatches{Term: term}
		for _, d := range docs {
			if strings.Contains(d.Lower(field), needle) {
				tm.Matches = append(tm.Matches, d)
			}
		}
		out = append(out, tm)
	}
	return out
}

// MatchAny returns the docs where any of fields contains any of terms, ignoring case.
// Empty terms never match.
func MatchAny(docs []cms.Doc, fields []string, terms []string) []cms.Doc {
	var needles []string
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			needles = append(needles, t)
		}
	}
	var out []cms.Doc
	for _, d := range docs {
		if docMatches(d, fields, needles) {
			out = append(out, d)
		}
	}
	return out
}

func docMatches(d cms.Doc, fields, needles []string) bool {
	for _, f := range fields {
		v := d.Lower(f)
		for _, n := range needles {
			if strings.Contains(v, n) {
				return true
			}
		}
	}
	return false
}

// Projection picks fields from d for display. Missing fields are empty.
func Projection(d cms.Doc, fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = d.String(f)
	}
	return out
}

// FormatProjection renders fields as "field: value" pairs separated by " | ".
func FormatProjection(d cms.Doc, fields []string) string {
	vals := Projection(d, fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + vals[i]
	}
	return strings.Join(parts, " | ")
}
