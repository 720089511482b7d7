// Package classify decodes free-text teaching event titles such as
// "SAe 3.OSC.03 APP TP2" into module, code, session type and cohort.
//
// The grammar is heuristic. It is expressed as an ordered list of rules,
// each consuming the result of the previous one:
//
//  1. marker:  detect and strip the apprenticeship marker token
//  2. type:    scan tokens from the end for the rightmost known session tag
//  3. name:    the module name is everything before that tag
//  4. code:    the module code is the leading course-code match of the name,
//     or its first word
//
// Classify never fails; titles that match nothing degrade to fallbacks.
package classify

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"coursedash/internal/model"
)

// Rules parameterizes the title grammar.
type Rules struct {
	// Marker is the exact, case-sensitive token that flags an
	// apprenticeship cohort.
	Marker string

	// Session tags, grouped by kind. The grouping also drives the order of
	// types inside a module (see Rank).
	Tutorial   []string
	Practical  []string
	Assessment []string

	// CodePatterns are matched against the start of the module name. They
	// are compiled case-insensitively and anchored at the beginning.
	CodePatterns []string
}

// DefaultRules returns the naming convention of the calendars this tool
// was built for.
func DefaultRules() Rules {
	return Rules{
		Marker:     "APP",
		Tutorial:   []string{"TDA", "TDB"},
		Practical:  []string{"TP1", "TP2", "TP3"},
		Assessment: []string{"Controle"},
		CodePatterns: []string{
			`R\d(?:\.\w+)+`,
			`SAe\s\d(?:\.\w+)+`,
		},
	}
}

// Descriptor is the structured reading of one title.
type Descriptor struct {
	Module     string
	ModuleCode string
	Type       string
	Cohort     model.Cohort
}

type kind int

const (
	kindUnspecified kind = iota
	kindTutorial
	kindPractical
	kindAssessment
	kindOther
)

// Classifier applies a compiled rule set. It is immutable and safe for
// concurrent use.
type Classifier struct {
	marker string
	tags   map[string]kind
	code   *regexp.Regexp
	steps  []step
}

// state is threaded through the rule steps.
type state struct {
	title   string
	tokens  []string
	typeIdx int
	out     Descriptor
}

type step func(c *Classifier, s *state)

// New compiles rules into a Classifier.
func New(rules Rules) (*Classifier, error) {
	c := &Classifier{
		marker: rules.Marker,
		tags:   make(map[string]kind),
	}
	for _, group := range []struct {
		tags []string
		k    kind
	}{
		{rules.Tutorial, kindTutorial},
		{rules.Practical, kindPractical},
		{rules.Assessment, kindAssessment},
	} {
		for _, t := range group.tags {
			if t == "" {
				continue
			}
			if _, dup := c.tags[t]; dup {
				return nil, fmt.Errorf("classify: session tag %q listed twice", t)
			}
			c.tags[t] = group.k
		}
	}

	if len(rules.CodePatterns) > 0 {
		alts := make([]string, 0, len(rules.CodePatterns))
		for _, p := range rules.CodePatterns {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("classify: code pattern %q: %w", p, err)
			}
			alts = append(alts, "(?:"+p+")")
		}
		c.code = regexp.MustCompile(`(?i)^(?:` + strings.Join(alts, "|") + `)`)
	}

	c.steps = []step{markerStep, typeStep, nameStep, codeStep}
	return c, nil
}

// Default returns the shared Classifier for DefaultRules. A Classifier is
// read-only once built, so the value is safe to share.
func Default() *Classifier {
	return defaultClassifier()
}

var defaultClassifier = sync.OnceValue(func() *Classifier {
	c, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
})

// Classify decodes a title.
func (c *Classifier) Classify(title string) Descriptor {
	s := &state{
		title:   title,
		tokens:  strings.Fields(title),
		typeIdx: -1,
	}
	for _, st := range c.steps {
		st(c, s)
	}
	return s.out
}

// Rank orders session types inside a module: unspecified first, then
// tutorial, practical and assessment tags, then anything unknown.
func (c *Classifier) Rank(sessionType string) int {
	if sessionType == model.TypeUnspecified {
		return int(kindUnspecified)
	}
	if k, ok := c.tags[sessionType]; ok {
		return int(k)
	}
	return int(kindOther)
}

// IsSessionTag reports whether tok is one of the configured session tags.
func (c *Classifier) IsSessionTag(tok string) bool {
	_, ok := c.tags[tok]
	return ok
}

func markerStep(c *Classifier, s *state) {
	s.out.Cohort = model.CohortStandard
	if c.marker == "" {
		return
	}
	kept := s.tokens[:0:0]
	for _, tok := range s.tokens {
		if tok == c.marker {
			s.out.Cohort = model.CohortApprentice
			continue
		}
		kept = append(kept, tok)
	}
	s.tokens = kept
}

// typeStep picks the rightmost known tag so that a tag-like word inside
// the module name does not win over the trailing one.
func typeStep(c *Classifier, s *state) {
	s.out.Type = model.TypeUnspecified
	for i := len(s.tokens) - 1; i >= 0; i-- {
		if c.IsSessionTag(s.tokens[i]) {
			s.typeIdx = i
			s.out.Type = s.tokens[i]
			return
		}
	}
}

func nameStep(_ *Classifier, s *state) {
	if s.typeIdx >= 0 {
		s.out.Module = strings.Join(s.tokens[:s.typeIdx], " ")
		return
	}
	s.out.Module = strings.Join(s.tokens, " ")
}

func codeStep(c *Classifier, s *state) {
	if c.code != nil {
		if m := c.code.FindString(s.out.Module); m != "" {
			s.out.ModuleCode = strings.TrimSpace(m)
			return
		}
	}
	if f := strings.Fields(s.out.Module); len(f) > 0 {
		s.out.ModuleCode = f[0]
		return
	}
	// Nothing before the tag: keep the code non-empty.
	if len(s.tokens) > 0 {
		s.out.ModuleCode = s.tokens[0]
		return
	}
	s.out.ModuleCode = model.TypeUnspecified
}
