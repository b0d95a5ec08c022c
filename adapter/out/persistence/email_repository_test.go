package persistence

import (
	"strings"
	"testing"

	out "github.com/agent-lilith/transform-pipeline/core/port/out"
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func TestBuildSelectQueryDefaults(t *testing.T) {
	query, args := buildSelectQuery(out.EmailSelector{})
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
	if !strings.Contains(query, "deleted_at IS NULL") || !strings.Contains(query, "body_text <> ''") {
		t.Errorf("query missing base conditions: %s", query)
	}
	if !strings.Contains(query, "transform_completed_at IS NULL") {
		t.Errorf("query should skip already-transformed rows when Force is false: %s", query)
	}
}

func TestBuildSelectQueryForceIncludesTransformed(t *testing.T) {
	query, _ := buildSelectQuery(out.EmailSelector{Force: true})
	if strings.Contains(query, "transform_completed_at IS NULL") {
		t.Errorf("force=true should not filter on transform_completed_at: %s", query)
	}
}

func TestBuildSelectQueryAccountAndEmailFilters(t *testing.T) {
	query, args := buildSelectQuery(out.EmailSelector{AccountID: int64Ptr(7), EmailID: int64Ptr(99)})
	if !strings.Contains(query, "account_id = $1") || !strings.Contains(query, "id = $2") {
		t.Errorf("query missing filters: %s", query)
	}
	if len(args) != 2 || args[0] != int64(7) || args[1] != int64(99) {
		t.Errorf("args = %v, want [7 99]", args)
	}
}

func TestBuildSelectQueryLimit(t *testing.T) {
	query, args := buildSelectQuery(out.EmailSelector{Limit: intPtr(50)})
	if !strings.Contains(query, "LIMIT $1") {
		t.Errorf("query missing LIMIT: %s", query)
	}
	if len(args) != 1 || args[0] != 50 {
		t.Errorf("args = %v, want [50]", args)
	}
}

func TestBuildSelectQueryPlaceholdersAreSequential(t *testing.T) {
	query, args := buildSelectQuery(out.EmailSelector{AccountID: int64Ptr(1), EmailID: int64Ptr(2), Limit: intPtr(3)})
	if !strings.Contains(query, "account_id = $1") || !strings.Contains(query, "id = $2") || !strings.Contains(query, "LIMIT $3") {
		t.Errorf("placeholders not sequential: %s", query)
	}
	if len(args) != 3 {
		t.Errorf("args = %v, want 3 entries", args)
	}
}
