package packmgr

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/openmined/remoteassets/internal/repository"
)

const (
	ModifierInclude = "include"
	ModifierExclude = "exclude"
)

type Rule struct {
	Modifier string `json:"modifier"`
	Pattern  string `json:"pattern"`
}

// FilterSet selects the subtree under Root, narrowed by Rules.
type FilterSet struct {
	Root  string `json:"root"`
	Rules []Rule `json:"rules"`
}

// Filter is the workspace filter of a package, serialized as a JSON array.
type Filter []FilterSet

func Include(pattern string) Rule {
	return Rule{Modifier: ModifierInclude, Pattern: pattern}
}

func Exclude(pattern string) Rule {
	return Rule{Modifier: ModifierExclude, Pattern: pattern}
}

func (f Filter) Roots() []string {
	roots := make([]string, 0, len(f))
	for _, set := range f {
		roots = append(roots, set.Root)
	}
	return roots
}

func (f Filter) JSON() (string, error) {
	f = slices.Clone(f)
	if f == nil {
		f = Filter{}
	}
	for i := range f {
		if f[i].Rules == nil {
			f[i].Rules = []Rule{}
		}
	}
	b, err := jsonMarshal(f)
	if err != nil {
		return "", fmt.Errorf("encode filter: %w", err)
	}
	return string(b), nil
}

func ParseFilter(s string) (Filter, error) {
	var f Filter
	if s == "" {
		return Filter{}, nil
	}
	if err := jsonUnmarshal([]byte(s), &f); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	return f, nil
}

type compiledRule struct {
	include bool
	re      *regexp.Regexp
}

type compiledSet struct {
	root  string
	rules []compiledRule
}

// CompiledFilter answers path membership for a Filter.
type CompiledFilter struct {
	sets []compiledSet
}

// Compile anchors every pattern so it must match the whole path.
func (f Filter) Compile() (*CompiledFilter, error) {
	cf := &CompiledFilter{sets: make([]compiledSet, 0, len(f))}
	for _, set := range f {
		cs := compiledSet{root: repository.CleanPath(set.Root)}
		for _, r := range set.Rules {
			re, err := regexp.Compile("^(?:" + r.Pattern + ")$")
			if err != nil {
				return nil, fmt.Errorf("filter pattern %q: %w", r.Pattern, err)
			}
			switch r.Modifier {
			case ModifierInclude:
				cs.rules = append(cs.rules, compiledRule{include: true, re: re})
			case ModifierExclude:
				cs.rules = append(cs.rules, compiledRule{include: false, re: re})
			default:
				return nil, fmt.Errorf("filter modifier %q", r.Modifier)
			}
		}
		cf.sets = append(cf.sets, cs)
	}
	return cf, nil
}

// Contains reports whether p is selected by any filter set. Within a set, a leading
// include rule makes everything else excluded by default; the last matching rule wins.
func (cf *CompiledFilter) Contains(p string) bool {
	for _, set := range cf.sets {
		if set.contains(p) {
			return true
		}
	}
	return false
}

func (cs *compiledSet) contains(p string) bool {
	if !repository.IsAncestorOrSelf(cs.root, p) {
		return false
	}
	if len(cs.rules) == 0 {
		return true
	}

	result := !cs.rules[0].include
	for _, r := range cs.rules {
		if r.re.MatchString(p) {
			result = r.include
		}
	}
	return result
}
