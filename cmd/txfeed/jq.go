package main

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// compileJQ parses and compiles a jq filter.
func compileJQ(filter string) (*gojq.Code, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}
	return code, nil
}

// toJQInput round-trips v through JSON so gojq sees plain maps and slices.
func toJQInput(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// runJQ returns every value the filter emits for v.
func runJQ(code *gojq.Code, v interface{}) ([]interface{}, error) {
	input, err := toJQInput(v)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare jq input: %w", err)
	}

	var results []interface{}
	iter := code.Run(input)
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := r.(error); isErr {
			return nil, fmt.Errorf("jq filter error: %w", err)
		}
		results = append(results, r)
	}
	return results, nil
}

// isTruthy applies jq truthiness: only null and false are false.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// jqPredicate is a compiled --must-jq filter.
type jqPredicate struct {
	filter string
	code   *gojq.Code
}

// matchesAll reports whether every predicate's first output for v is truthy.
func matchesAll(v interface{}, predicates []*jqPredicate) (bool, error) {
	for _, p := range predicates {
		results, err := runJQ(p.code, v)
		if err != nil {
			return false, fmt.Errorf("%s: %w", p.filter, err)
		}
		if len(results) == 0 || !isTruthy(results[0]) {
			return false, nil
		}
	}
	return true, nil
}
