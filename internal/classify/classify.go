// Package classify turns detected face embeddings and a reference store into
// a three-way bucket decision with full audit detail.
package classify

import (
	"fmt"
	"sort"

	"github.com/kozaktomas/face-matcher/internal/reference"
)

// Bucket is the classification outcome for one photo.
type Bucket string

const (
	BucketMatched       Bucket = "matched"
	BucketAlmostMatched Bucket = "almost_matched"
	BucketNotMatched    Bucket = "not_matched"
)

func (b Bucket) String() string {
	return string(b)
}

// ReasonNoFaces marks the NOT_MATCHED case where detection found nothing,
// as opposed to faces that matched no reference.
const ReasonNoFaces = "no faces detected"

// topK is how many per-face entries are kept for diagnostics.
const topK = 5

// Thresholds is the pair driving the bucket decision. Almost is derived:
// Match - 0.1, clamped at 0.
type Thresholds struct {
	Match  float64
	Almost float64
}

func NewThresholds(match float64) Thresholds {
	almost := match - 0.1
	if almost < 0 {
		almost = 0
	}
	return Thresholds{Match: match, Almost: almost}
}

// AlmostRange renders the almost-matched confidence interval for log
// messages, upper bound exclusive.
func (t Thresholds) AlmostRange() string {
	return fmt.Sprintf("%.2f-%.2f", t.Almost, t.Match-0.01)
}

// ConfidenceEntry is one (reference, confidence) pair, confidence in [0, 1].
type ConfidenceEntry struct {
	Reference  string  `json:"reference"`
	Confidence float64 `json:"confidence"`
}

// FaceScores holds the top diagnostic entries for one detected face.
type FaceScores struct {
	FaceIndex int               `json:"face_index"`
	Top       []ConfidenceEntry `json:"top"`
}

// Result is the classification of one photo. Matches and AlmostMatches pool
// every face/reference pair above its threshold across all faces in the
// photo, without deduplication, sorted by confidence descending.
type Result struct {
	Bucket         Bucket            `json:"bucket"`
	BestConfidence float64           `json:"best_confidence"`
	FacesCount     int               `json:"faces_count"`
	Matches        []ConfidenceEntry `json:"matches,omitempty"`
	AlmostMatches  []ConfidenceEntry `json:"almost_matches,omitempty"`
	FaceScores     []FaceScores      `json:"face_scores,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

// Rank scores one face embedding against every reference and returns the
// entries ordered by confidence descending. Ties keep the reference
// insertion order (stable sort), so the ranking is deterministic.
func Rank(face []float32, refs []reference.Face) []ConfidenceEntry {
	entries := make([]ConfidenceEntry, 0, len(refs))
	for _, ref := range refs {
		entries = append(entries, ConfidenceEntry{
			Reference:  ref.Identity,
			Confidence: Confidence(face, ref.Embedding),
		})
	}
	sortByConfidence(entries)
	return entries
}

func sortByConfidence(entries []ConfidenceEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Confidence > entries[j].Confidence
	})
}

// Classify decides the bucket for one photo given the embeddings of its
// detected faces. The decision is a pure function of the confidences:
// MATCHED if any face/reference pair reaches Match, else ALMOST_MATCHED if
// any lands in [Almost, Match), else NOT_MATCHED.
func Classify(faces [][]float32, refs []reference.Face, th Thresholds) Result {
	rankings := make([][]ConfidenceEntry, len(faces))
	for i, face := range faces {
		rankings[i] = Rank(face, refs)
	}
	return ClassifyRanked(rankings, th)
}

// ClassifyRanked runs the bucket decision over per-face rankings (one
// descending-ordered entry list per detected face). Match and almost pools
// accumulate across all faces without deduplication by reference.
func ClassifyRanked(rankings [][]ConfidenceEntry, th Thresholds) Result {
	if len(rankings) == 0 {
		return Result{
			Bucket: BucketNotMatched,
			Reason: ReasonNoFaces,
		}
	}

	result := Result{FacesCount: len(rankings)}
	var highest float64

	for idx, entries := range rankings {
		k := topK
		if len(entries) < k {
			k = len(entries)
		}
		result.FaceScores = append(result.FaceScores, FaceScores{
			FaceIndex: idx,
			Top:       entries[:k],
		})

		if len(entries) > 0 && entries[0].Confidence > highest {
			highest = entries[0].Confidence
		}

		for _, entry := range entries {
			switch {
			case entry.Confidence >= th.Match:
				result.Matches = append(result.Matches, entry)
			case entry.Confidence >= th.Almost:
				result.AlmostMatches = append(result.AlmostMatches, entry)
			}
		}
	}

	switch {
	case len(result.Matches) > 0:
		sortByConfidence(result.Matches)
		result.Bucket = BucketMatched
		result.BestConfidence = result.Matches[0].Confidence
	case len(result.AlmostMatches) > 0:
		sortByConfidence(result.AlmostMatches)
		result.Bucket = BucketAlmostMatched
		result.BestConfidence = result.AlmostMatches[0].Confidence
	default:
		result.Bucket = BucketNotMatched
		result.BestConfidence = highest // diagnostic only
		result.Reason = fmt.Sprintf("no matches above threshold %.2f or in almost range %s",
			th.Match, th.AlmostRange())
	}

	return result
}
