package classify

import (
	"math"
	"reflect"
	"testing"

	"github.com/kozaktomas/face-matcher/internal/reference"
)

func TestNewThresholds(t *testing.T) {
	tests := []struct {
		name       string
		match      float64
		wantAlmost float64
	}{
		{"default", 0.8, 0.7},
		{"high", 1.0, 0.9},
		{"low clamps at zero", 0.05, 0.0},
		{"zero", 0.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := NewThresholds(tt.match)
			if math.Abs(th.Almost-tt.wantAlmost) > 1e-9 {
				t.Errorf("NewThresholds(%v).Almost = %v, want %v", tt.match, th.Almost, tt.wantAlmost)
			}
			if th.Almost < 0 || th.Almost > th.Match {
				t.Errorf("invariant violated: 0 <= %v <= %v", th.Almost, th.Match)
			}
		})
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name     string
		face     []float32
		ref      []float32
		expected float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		// cos = 4/5 with exact integer arithmetic
		{"partial", []float32{4, 3}, []float32{1, 0}, 0.8},
		// opposite vectors give distance 2; confidence clamps at 0
		{"opposite clamps", []float32{1, 0}, []float32{-1, 0}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0.0},
		{"dimension mismatch", []float32{1}, []float32{1, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.face, tt.ref)
			if math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("Confidence() = %v, want %v", got, tt.expected)
			}
			if got < 0 || got > 1 {
				t.Errorf("confidence %v outside [0, 1]", got)
			}
		})
	}
}

func refStore(t *testing.T, faces ...reference.Face) []reference.Face {
	t.Helper()
	store := reference.NewStore()
	for _, f := range faces {
		if err := store.Add(f.Identity, f.Embedding); err != nil {
			t.Fatalf("Add(%s) failed: %v", f.Identity, err)
		}
	}
	return store.Faces()
}

func TestRank_OrderedDescending(t *testing.T) {
	refs := refStore(t,
		reference.Face{Identity: "far.jpg", Embedding: []float32{0, 1}},
		reference.Face{Identity: "near.jpg", Embedding: []float32{1, 0}},
		reference.Face{Identity: "mid.jpg", Embedding: []float32{4, 3}},
	)

	entries := Rank([]float32{1, 0}, refs)

	want := []string{"near.jpg", "mid.jpg", "far.jpg"}
	for i, id := range want {
		if entries[i].Reference != id {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].Reference, id)
		}
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Confidence > entries[i-1].Confidence {
			t.Errorf("entries not descending at %d", i)
		}
	}
}

func TestRank_TiesKeepInsertionOrder(t *testing.T) {
	// Two references with identical embeddings produce equal confidences;
	// the stable sort must keep their load order.
	refs := refStore(t,
		reference.Face{Identity: "second-best.jpg", Embedding: []float32{0, 1}},
		reference.Face{Identity: "tie-a.jpg", Embedding: []float32{1, 0}},
		reference.Face{Identity: "tie-b.jpg", Embedding: []float32{1, 0}},
	)

	entries := Rank([]float32{1, 0}, refs)

	if entries[0].Reference != "tie-a.jpg" || entries[1].Reference != "tie-b.jpg" {
		t.Errorf("tie order not stable: %s, %s", entries[0].Reference, entries[1].Reference)
	}
}

func TestClassify_NoFaces(t *testing.T) {
	result := Classify(nil, nil, NewThresholds(0.8))

	if result.Bucket != BucketNotMatched {
		t.Errorf("bucket = %s, want %s", result.Bucket, BucketNotMatched)
	}
	if result.Reason != ReasonNoFaces {
		t.Errorf("reason = %q, want %q", result.Reason, ReasonNoFaces)
	}
	if result.BestConfidence != 0 {
		t.Errorf("best confidence = %v, want 0", result.BestConfidence)
	}
	if len(result.Matches) != 0 || len(result.AlmostMatches) != 0 {
		t.Error("expected empty match pools")
	}
}

func TestClassifyRanked_Boundaries(t *testing.T) {
	th := NewThresholds(0.8)

	tests := []struct {
		name       string
		confidence float64
		want       Bucket
	}{
		{"exactly at threshold", 0.80, BucketMatched},
		{"above threshold", 0.95, BucketMatched},
		{"just below threshold", 0.79, BucketAlmostMatched},
		{"exactly at almost threshold", 0.70, BucketAlmostMatched},
		{"just below almost threshold", 0.69, BucketNotMatched},
		{"zero", 0.0, BucketNotMatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rankings := [][]ConfidenceEntry{{{Reference: "ref.jpg", Confidence: tt.confidence}}}
			result := ClassifyRanked(rankings, th)
			if result.Bucket != tt.want {
				t.Errorf("confidence %v → %s, want %s", tt.confidence, result.Bucket, tt.want)
			}
			if result.BestConfidence != tt.confidence {
				t.Errorf("best confidence = %v, want %v", result.BestConfidence, tt.confidence)
			}
		})
	}
}

func TestClassifyRanked_MatchWinsOverAlmost(t *testing.T) {
	th := NewThresholds(0.8)
	rankings := [][]ConfidenceEntry{
		{{Reference: "a.jpg", Confidence: 0.75}, {Reference: "b.jpg", Confidence: 0.3}},
		{{Reference: "c.jpg", Confidence: 0.85}},
	}

	result := ClassifyRanked(rankings, th)

	if result.Bucket != BucketMatched {
		t.Fatalf("bucket = %s, want %s", result.Bucket, BucketMatched)
	}
	if result.BestConfidence != 0.85 {
		t.Errorf("best confidence = %v, want 0.85", result.BestConfidence)
	}
	// The almost pool is still reported for the audit trail.
	if len(result.AlmostMatches) != 1 || result.AlmostMatches[0].Reference != "a.jpg" {
		t.Errorf("almost pool = %+v, want a.jpg", result.AlmostMatches)
	}
}

func TestClassifyRanked_PoolsAcrossFacesWithoutDedup(t *testing.T) {
	// Two faces both matching the same reference: both pairs are kept.
	th := NewThresholds(0.8)
	rankings := [][]ConfidenceEntry{
		{{Reference: "anna.jpg", Confidence: 0.9}},
		{{Reference: "anna.jpg", Confidence: 0.82}},
	}

	result := ClassifyRanked(rankings, th)

	if len(result.Matches) != 2 {
		t.Fatalf("expected 2 match entries, got %d", len(result.Matches))
	}
	if result.Matches[0].Confidence != 0.9 || result.Matches[1].Confidence != 0.82 {
		t.Errorf("matches not sorted descending: %+v", result.Matches)
	}
}

func TestClassifyRanked_NotMatchedKeepsHighestDiagnostic(t *testing.T) {
	th := NewThresholds(0.8)
	rankings := [][]ConfidenceEntry{
		{{Reference: "a.jpg", Confidence: 0.4}, {Reference: "b.jpg", Confidence: 0.1}},
		{{Reference: "a.jpg", Confidence: 0.55}},
	}

	result := ClassifyRanked(rankings, th)

	if result.Bucket != BucketNotMatched {
		t.Fatalf("bucket = %s, want %s", result.Bucket, BucketNotMatched)
	}
	if result.BestConfidence != 0.55 {
		t.Errorf("best confidence = %v, want 0.55", result.BestConfidence)
	}
	if result.Reason == "" || result.Reason == ReasonNoFaces {
		t.Errorf("expected a below-threshold reason, got %q", result.Reason)
	}
}

func TestClassifyRanked_TopFivePerFace(t *testing.T) {
	entries := make([]ConfidenceEntry, 8)
	for i := range entries {
		entries[i] = ConfidenceEntry{Reference: "ref.jpg", Confidence: float64(8-i) / 100}
	}

	result := ClassifyRanked([][]ConfidenceEntry{entries}, NewThresholds(0.8))

	if len(result.FaceScores) != 1 {
		t.Fatalf("expected scores for 1 face, got %d", len(result.FaceScores))
	}
	if len(result.FaceScores[0].Top) != 5 {
		t.Errorf("expected top-5 entries, got %d", len(result.FaceScores[0].Top))
	}
	if result.FaceScores[0].FaceIndex != 0 {
		t.Errorf("face index = %d, want 0", result.FaceScores[0].FaceIndex)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	refs := refStore(t,
		reference.Face{Identity: "anna.jpg", Embedding: []float32{1, 0}},
		reference.Face{Identity: "ben.jpg", Embedding: []float32{4, 3}},
	)
	faces := [][]float32{{1, 0}, {0, 1}}
	th := NewThresholds(0.8)

	first := Classify(faces, refs, th)
	second := Classify(faces, refs, th)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("classification not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestAlmostRange(t *testing.T) {
	th := NewThresholds(0.8)
	if got := th.AlmostRange(); got != "0.70-0.79" {
		t.Errorf("AlmostRange() = %q, want %q", got, "0.70-0.79")
	}
}
