package library

import (
	"math"
	"strings"
	"time"
)

type ReadingStatus string

const (
	StatusReading   ReadingStatus = "reading"
	StatusRead      ReadingStatus = "read"
	StatusAbandoned ReadingStatus = "abandoned"
)

func ParseReadingStatus(s string) (ReadingStatus, error) {
	switch normalizeToken(s) {
	case "reading":
		return StatusReading, nil
	case "read":
		return StatusRead, nil
	case "abandoned":
		return StatusAbandoned, nil
	}
	return "", ErrInvalidStatus
}

type ReadingFormat string

const (
	FormatPhysical  ReadingFormat = "physical"
	FormatEReader   ReadingFormat = "ereader"
	FormatAudiobook ReadingFormat = "audiobook"
)

func ParseReadingFormat(s string) (ReadingFormat, error) {
	switch normalizeToken(s) {
	case "physical":
		return FormatPhysical, nil
	case "ereader", "e_reader":
		return FormatEReader, nil
	case "audiobook":
		return FormatAudiobook, nil
	}
	return "", ErrInvalidFormat
}

func (f ReadingFormat) DisplayLabel() string {
	switch f {
	case FormatPhysical:
		return "Physical"
	case FormatEReader:
		return "eReader"
	case FormatAudiobook:
		return "Audiobook"
	}
	return string(f)
}

type QuickReview string

const (
	ReviewLovedIt          QuickReview = "loved_it"
	ReviewPageTurner       QuickReview = "page_turner"
	ReviewThoughtProvoking QuickReview = "thought_provoking"
	ReviewCouldntPutDown   QuickReview = "couldnt_put_down"
	ReviewGreatCharacters  QuickReview = "great_characters"
	ReviewFunny            QuickReview = "funny"
	ReviewMoving           QuickReview = "moving"
	ReviewQuickRead        QuickReview = "quick_read"
	ReviewSlowBurn         QuickReview = "slow_burn"
	ReviewDense            QuickReview = "dense"
)

var quickReviewLabels = map[QuickReview]string{
	ReviewLovedIt:          "Loved it",
	ReviewPageTurner:       "Page-turner",
	ReviewThoughtProvoking: "Thought-provoking",
	ReviewCouldntPutDown:   "Couldn't put down",
	ReviewGreatCharacters:  "Great characters",
	ReviewFunny:            "Funny",
	ReviewMoving:           "Moving",
	ReviewQuickRead:        "Quick read",
	ReviewSlowBurn:         "Slow burn",
	ReviewDense:            "Dense",
}

func (q QuickReview) Label() string {
	if label, ok := quickReviewLabels[q]; ok {
		return label
	}
	return string(q)
}

// ParseQuickReviews validates review tokens, dropping duplicates.
func ParseQuickReviews(tokens []string) ([]QuickReview, error) {
	out := make([]QuickReview, 0, len(tokens))
	seen := make(map[QuickReview]bool, len(tokens))
	for _, t := range tokens {
		q := QuickReview(normalizeToken(t))
		if _, ok := quickReviewLabels[q]; !ok {
			return nil, ErrInvalidReview
		}
		if !seen[q] {
			seen[q] = true
			out = append(out, q)
		}
	}
	return out, nil
}

type Reading struct {
	ID           int64         `json:"id"`
	UserID       int64         `json:"user_id"`
	BookID       int64         `json:"book_id"`
	Status       ReadingStatus `json:"status"`
	Format       ReadingFormat `json:"format,omitempty"`
	Rating       *float64      `json:"rating,omitempty"`
	QuickReviews []QuickReview `json:"quick_reviews,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ValidateRating accepts nil or a value in [0.5, 5] on a half-star grid.
func ValidateRating(rating *float64) error {
	if rating == nil {
		return nil
	}
	r := *rating
	if r < 0.5 || r > 5 || math.Mod(r*2, 1) != 0 {
		return ErrInvalidRating
	}
	return nil
}

func normalizeToken(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}
