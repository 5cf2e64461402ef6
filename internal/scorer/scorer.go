// Package scorer ranks memory records and decides how a new fact supersedes older ones.
//
// The score is multiplicative at its core with additive bonuses:
//
//	score = relevance × timeDecay × importance × sourcePriority + accessBonus + identityBoost
//
// where timeDecay never falls below 0.5, so age alone can at most halve a fact's weight.
package scorer

import (
	"math"
	"strings"
	"time"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/taxonomy"
)

const (
	DecayPerDay        = 0.01
	DecayFloor         = 0.5
	AccessBonusPerHit  = 0.02
	AccessBonusCap     = 0.2
	IdentityBoost      = 0.4
	CategoryMatchBonus = 0.15
	DefaultImportance  = 0.5
)

var sourcePriority = map[string]float64{
	model.SourceExplicit: 1.0,
	model.SourceInferred: 0.8,
	model.SourceLLM:      0.7,
	model.SourceAuto:     0.7,
	model.SourceCanvas:   0.6,
}

// SourcePriority returns the fixed weight of a provenance tag. Unknown tags weigh like auto-capture.
func SourcePriority(source string) float64 {
	if p, ok := sourcePriority[source]; ok {
		return p
	}
	return sourcePriority[model.SourceAuto]
}

// TimeDecay returns max(0.5, 1 - ageInDays*0.01).
func TimeDecay(ageInDays float64) float64 {
	if ageInDays < 0 {
		ageInDays = 0
	}
	return math.Max(DecayFloor, 1-ageInDays*DecayPerDay)
}

// AccessBonus returns min(0.2, accessCount*0.02).
func AccessBonus(accessCount int) float64 {
	if accessCount <= 0 {
		return 0
	}
	return math.Min(AccessBonusCap, float64(accessCount)*AccessBonusPerHit)
}

// IsIdentity reports whether the record's key or category belongs to the core-identity set.
func IsIdentity(r model.MemoryRecord) bool {
	return taxonomy.IsIdentity(r.Category) || taxonomy.IsIdentityKey(r.Key)
}

// Score ranks r for qc with the given relevance (similarity in [0,1]).
func Score(r model.MemoryRecord, relevance float64, qc model.SupersessionContext) float64 {
	now := qc.Now
	if now.IsZero() {
		now = time.Now()
	}
	age := 0.0
	if created := r.CreatedAt(); !created.IsZero() {
		age = now.Sub(created).Hours() / 24
	}

	importance := r.Metadata.Importance
	if importance <= 0 {
		importance = DefaultImportance
	}
	relevance = clamp01(relevance)

	score := relevance * TimeDecay(age) * clamp01(importance) * SourcePriority(r.Metadata.Source)
	score += AccessBonus(r.AccessCount)
	if IsIdentity(r) {
		score += IdentityBoost
	}
	if qc.TargetCategory != "" && r.Category == qc.TargetCategory {
		score += CategoryMatchBonus
	}
	return score
}

// Resolution is the outcome of a same-key conflict.
type Resolution struct {
	Accept bool
	// Retire lists records to remove. Hard means delete outright rather than soft-delete.
	Retire []model.MemoryRecord
	Hard   bool
	Reason string
}

// ResolveConflict decides whether newFact is accepted and which same-key records it retires.
// explicit reports whether the current message contains a first-person declaration.
//
// Protected identity keys: the newest explicit statement wins and old records are deleted;
// background extraction never overwrites them. Replace-on-conflict categories retire older
// records. Everything else accumulates and is disambiguated by Score at query time.
func ResolveConflict(newFact model.MemoryRecord, existing []model.MemoryRecord, explicit bool) Resolution {
	var same []model.MemoryRecord
	for _, e := range existing {
		if e.Key != newFact.Key || e.UserID != newFact.UserID || e.DeletedAt != nil {
			continue
		}
		same = append(same, e)
	}
	if len(same) == 0 {
		return Resolution{Accept: true, Reason: "new"}
	}

	for _, e := range same {
		if sameValue(e.Value, newFact.Value) && e.Category == newFact.Category {
			return Resolution{Accept: false, Reason: "duplicate"}
		}
	}

	if taxonomy.ProtectedKeys[newFact.Key] {
		if !explicit {
			return Resolution{Accept: false, Reason: "protected"}
		}
		return Resolution{Accept: true, Retire: same, Hard: true, Reason: "protected-overwrite"}
	}
	if taxonomy.ReplacesOnConflict(newFact.Category) {
		return Resolution{Accept: true, Retire: same, Reason: "replace"}
	}
	return Resolution{Accept: true, Reason: "accumulate"}
}

func sameValue(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
