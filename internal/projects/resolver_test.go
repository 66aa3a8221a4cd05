package projects

import (
	"context"
	"testing"

	"github.com/agnivade/levenshtein"
)

type staticSource []Candidate

func (s staticSource) ListCandidates(_ context.Context) ([]Candidate, error) {
	return s, nil
}

func TestResolve_ExactMatchIsCaseInsensitive(t *testing.T) {
	resolver := NewResolver(staticSource{
		{ID: 1, Code: "UP-AND-1073", ClientName: "Acme"},
	})

	res, err := resolver.Resolve(context.Background(), "  up-and-1073 ", 2)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Outcome != OutcomeExact || res.Candidate.Code != "UP-AND-1073" {
		t.Fatalf("expected exact match, got %+v", res)
	}
}

func TestResolve_FuzzySuggestionWithinThreshold(t *testing.T) {
	resolver := NewResolver(staticSource{
		{ID: 1, Code: "UP-AND-1073", ClientName: "Acme"},
	})

	res, err := resolver.Resolve(context.Background(), "UP-AND-1070", 2)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Outcome != OutcomeFuzzy || res.Candidate.Code != "UP-AND-1073" || res.Distance != 1 {
		t.Fatalf("expected fuzzy UP-AND-1073 at distance 1, got %+v", res)
	}
}

func TestResolve_DistanceAtThresholdIsNoMatch(t *testing.T) {
	resolver := NewResolver(staticSource{
		{ID: 1, Code: "UP-AND-1073"},
	})

	// distance 2 with threshold 2 must not be surfaced
	res, err := resolver.Resolve(context.Background(), "UP-AND-1009", 2)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Outcome != OutcomeNoMatch {
		t.Fatalf("expected no match at the threshold, got %+v", res)
	}
}

func TestResolve_FarCandidateIsNoMatch(t *testing.T) {
	resolver := NewResolver(staticSource{
		{ID: 1, Code: "UP-AND-1073"},
	})

	res, err := resolver.Resolve(context.Background(), "UP-XYZ-99", 2)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Outcome != OutcomeNoMatch {
		t.Fatalf("expected no match for a distant code, got %+v", res)
	}
}

func TestResolve_TiesKeepFirstSeenDeterministically(t *testing.T) {
	source := staticSource{
		{ID: 1, Code: "AAAB"},
		{ID: 2, Code: "AAAC"},
	}
	resolver := NewResolver(source)

	for i := 0; i < 10; i++ {
		res, err := resolver.Resolve(context.Background(), "AAAD", 2)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if res.Outcome != OutcomeFuzzy || res.Candidate.Code != "AAAB" {
			t.Fatalf("tie must resolve to the first candidate, got %+v", res)
		}
	}
}

func TestResolve_DistanceIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"up-and-1070", "up-and-1073"},
		{"consulting", "consultancy"},
		{"", "abc"},
	}
	for _, p := range pairs {
		ab := levenshtein.ComputeDistance(p[0], p[1])
		ba := levenshtein.ComputeDistance(p[1], p[0])
		if ab != ba {
			t.Fatalf("distance(%q,%q)=%d but reversed=%d", p[0], p[1], ab, ba)
		}
	}
}

func TestResolve_EmptyInputIsNoMatch(t *testing.T) {
	resolver := NewResolver(staticSource{{ID: 1, Code: "X"}})
	res, err := resolver.Resolve(context.Background(), "   ", 4)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Outcome != OutcomeNoMatch {
		t.Fatalf("expected no match for blank input, got %+v", res)
	}
}
