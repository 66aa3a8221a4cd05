package projects

import (
	"context"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Outcome classifies a resolution attempt.
type Outcome int

const (
	OutcomeNoMatch Outcome = iota
	OutcomeExact
	OutcomeFuzzy
)

// Resolution is the result of matching a free-text code against the
// project directory. Candidate is set for exact and fuzzy outcomes;
// Distance only for fuzzy ones.
type Resolution struct {
	Outcome   Outcome
	Candidate Candidate
	Distance  int
}

// CandidateSource lists the directory the resolver matches against.
type CandidateSource interface {
	ListCandidates(ctx context.Context) ([]Candidate, error)
}

// Resolver matches free-text project codes, exact first, then by minimum
// Levenshtein distance. Matching is case-insensitive on trimmed input.
type Resolver struct {
	source CandidateSource
}

func NewResolver(source CandidateSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve finds the candidate for code. A fuzzy result is only surfaced
// when its distance is strictly below threshold; everything at or above it
// is a no-match. Ties at the minimum distance keep the first candidate in
// enumeration order, so repeated calls against an unchanged directory
// always return the same suggestion.
func (r *Resolver) Resolve(ctx context.Context, code string, threshold int) (Resolution, error) {
	needle := strings.ToLower(strings.TrimSpace(code))
	if needle == "" {
		return Resolution{}, nil
	}

	candidates, err := r.source.ListCandidates(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("load candidates: %w", err)
	}

	best := Resolution{}
	bestDistance := -1
	for _, candidate := range candidates {
		haystack := strings.ToLower(strings.TrimSpace(candidate.Code))
		if haystack == needle {
			return Resolution{Outcome: OutcomeExact, Candidate: candidate}, nil
		}
		distance := levenshtein.ComputeDistance(needle, haystack)
		if bestDistance == -1 || distance < bestDistance {
			bestDistance = distance
			best = Resolution{Outcome: OutcomeFuzzy, Candidate: candidate, Distance: distance}
		}
	}

	if bestDistance == -1 || bestDistance >= threshold {
		return Resolution{}, nil
	}
	return best, nil
}
