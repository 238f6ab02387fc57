// Package agg implements NaN-aware aggregation methods and the
// pattern-to-method rule table used when downsampling blocks, ported from
// original_source/hisser/agg.py.
package agg

import (
	"fmt"
	"math"
	"regexp"
)

// Method folds a window of samples (some of which may be math.NaN,
// meaning "no data") into a single value. An all-NaN window returns NaN.
type Method func(window []float64) float64

// Registry of built-in methods, matched by name in rule files and the
// agg-method CLI command.
var Registry = map[string]Method{
	"avg":  Avg,
	"sum":  Sum,
	"min":  Min,
	"max":  Max,
	"last": Last,
}

// Avg returns the arithmetic mean of the non-NaN samples in window.
func Avg(window []float64) float64 {
	var sum float64
	var n int
	for _, v := range window {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Sum totals the non-NaN samples in window.
func Sum(window []float64) float64 {
	var sum float64
	var n int
	for _, v := range window {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum
}

// Min returns the smallest non-NaN sample.
func Min(window []float64) float64 {
	result := math.NaN()
	for _, v := range window {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(result) || v < result {
			result = v
		}
	}
	return result
}

// Max returns the largest non-NaN sample.
func Max(window []float64) float64 {
	result := math.NaN()
	for _, v := range window {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(result) || v > result {
			result = v
		}
	}
	return result
}

// Last returns the last non-NaN sample in window order.
func Last(window []float64) float64 {
	for i := len(window) - 1; i >= 0; i-- {
		if !math.IsNaN(window[i]) {
			return window[i]
		}
	}
	return math.NaN()
}

// Rule pairs a compiled metric-name pattern with the method applied to
// matching metrics.
type Rule struct {
	Pattern *regexp.Regexp
	Method  Method
}

// Rules is an ordered list of Rule plus a default method for names that
// match nothing, mirroring agg.py's AggRules.
type Rules struct {
	rules   []Rule
	Default Method
}

// Parse builds Rules from a spec string "pattern=method,pattern=method:default"
// as read from pkg/config's AggRules setting.
func Parse(spec string) (*Rules, error) {
	rulesPart := spec
	defaultName := "avg"
	for i := len(spec) - 1; i >= 0; i-- {
		if spec[i] == ':' {
			rulesPart = spec[:i]
			defaultName = spec[i+1:]
			break
		}
	}

	r := &Rules{}
	def, ok := Registry[defaultName]
	if !ok {
		return nil, fmt.Errorf("agg: unknown default method %q", defaultName)
	}
	r.Default = def

	if rulesPart == "" {
		return r, nil
	}

	start := 0
	for i := 0; i <= len(rulesPart); i++ {
		if i == len(rulesPart) || rulesPart[i] == ',' {
			if i > start {
				entry := rulesPart[start:i]
				eq := -1
				for j, c := range entry {
					if c == '=' {
						eq = j
						break
					}
				}
				if eq < 0 {
					return nil, fmt.Errorf("agg: malformed rule %q (want pattern=method)", entry)
				}
				pat, methodName := entry[:eq], entry[eq+1:]
				method, ok := Registry[methodName]
				if !ok {
					return nil, fmt.Errorf("agg: unknown method %q in rule %q", methodName, entry)
				}
				re, err := regexp.Compile(pat)
				if err != nil {
					return nil, fmt.Errorf("agg: bad pattern %q: %w", pat, err)
				}
				r.rules = append(r.rules, Rule{Pattern: re, Method: method})
			}
			start = i + 1
		}
	}
	return r, nil
}

// MethodFor returns the method that applies to name: the first rule whose
// pattern matches, or Default.
func (r *Rules) MethodFor(name string) Method {
	for _, rule := range r.rules {
		if rule.Pattern.MatchString(name) {
			return rule.Method
		}
	}
	return r.Default
}
