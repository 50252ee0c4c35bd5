package main

import (
	"testing"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestMatchesAll(t *testing.T) {
	a := activity.Activity{
		Signature:         "sig1",
		Status:            activity.StatusPending,
		Action:            activity.ActionSend,
		TotalAmountString: strp("1.5"),
		ID:                strp("order-1"),
	}

	tests := []struct {
		name        string
		filters     []string
		expectMatch bool
		expectErr   bool
	}{
		{name: "no filters", expectMatch: true},
		{name: "status matches", filters: []string{`.status == "pending"`}, expectMatch: true},
		{name: "status differs", filters: []string{`.status == "confirmed"`}, expectMatch: false},
		{name: "all must hold", filters: []string{`.action == "send"`, `.id == "order-1"`}, expectMatch: true},
		{name: "one fails", filters: []string{`.action == "send"`, `.id == "order-2"`}, expectMatch: false},
		{name: "non-boolean is truthy", filters: []string{`.totalAmountString`}, expectMatch: true},
		{name: "missing field is null", filters: []string{`.fee`}, expectMatch: false},
		{name: "empty output", filters: []string{`empty`}, expectMatch: false},
		{name: "runtime error", filters: []string{`.signature | tonumber`}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var preds []*jqPredicate
			for _, f := range tt.filters {
				code, err := compileJQ(f)
				require.NoError(t, err)
				preds = append(preds, &jqPredicate{filter: f, code: code})
			}

			got, err := matchesAll(a, preds)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectMatch, got)
		})
	}
}

func TestCompileJQ_Invalid(t *testing.T) {
	_, err := compileJQ(`.status ==`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")
}

func TestRunJQ_MultipleOutputs(t *testing.T) {
	code, err := compileJQ(`.signature, .status`)
	require.NoError(t, err)

	got, err := runJQ(code, activity.Activity{Signature: "sig1", Status: activity.StatusFailed})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"sig1", "failed"}, got)
}
