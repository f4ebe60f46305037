package entities

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Rating is one accepted star rating for a widget.
// Count is the 1-based position of the rating in the widget's sequence.
type Rating struct {
	Star  uint64 `json:"star"`
	Count uint64 `json:"count"`
}

// WidgetStar is the average rating of a widget.
type WidgetStar struct {
	WidgetID string  `json:"widget_id"`
	Average  float64 `json:"average"`
}

// FeedbackState holds the feedback text, rating history and voter registry
// of every widget. It is the unit of persistence: repositories load and
// save it whole around each call.
//
// FeedbackState performs no locking. Callers must not run two operations
// against the same value concurrently.
type FeedbackState struct {
	widgetFeedbacks map[string][]string
	widgetRatings   map[string][]Rating
	votedAccounts   map[string]struct{}

	logger *zerolog.Logger
}

// NewFeedbackState returns an empty state.
func NewFeedbackState() *FeedbackState {
	return &FeedbackState{
		widgetFeedbacks: make(map[string][]string),
		widgetRatings:   make(map[string][]Rating),
		votedAccounts:   make(map[string]struct{}),
	}
}

// WithLogger sets the sink that receives diagnostic records and returns s.
func (s *FeedbackState) WithLogger(logger *zerolog.Logger) *FeedbackState {
	s.logger = logger
	return s
}

func (s *FeedbackState) log() *zerolog.Logger {
	if s.logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return s.logger
}

// GetFeedbacks returns a copy of the feedback recorded for widgetID, in
// insertion order. The second value is false when the widget has none.
func (s *FeedbackState) GetFeedbacks(widgetID string) ([]string, bool) {
	feedbacks, ok := s.widgetFeedbacks[widgetID]
	if !ok {
		return nil, false
	}
	out := make([]string, len(feedbacks))
	copy(out, feedbacks)
	return out, true
}

// AddFeedback records feedback from accountID for widgetID and, if the
// account has never voted anywhere, counts its star rating for the widget.
// The voter registry is global: an account's first rating is its only one.
// star is stored as given. widgetLink is only logged.
func (s *FeedbackState) AddFeedback(feedback, widgetID, widgetLink, accountID string, star uint64) {
	logger := s.log()

	logger.Info().
		Str("widget_id", widgetID).
		Str("widget_link", widgetLink).
		Str("account_id", accountID).
		Str("feedback", feedback).
		Msg("adding feedback")

	s.widgetFeedbacks[widgetID] = append(s.widgetFeedbacks[widgetID], FormatFeedback(accountID, feedback))

	logger.Info().
		Str("widget_id", widgetID).
		Str("account_id", accountID).
		Str("feedback", feedback).
		Msgf("%s said %s to %s", accountID, feedback, widgetID)

	if s.HasVoted(accountID) {
		logger.Info().
			Str("widget_id", widgetID).
			Str("account_id", accountID).
			Msgf("account %s has already voted", accountID)
		return
	}

	count := uint64(len(s.widgetRatings[widgetID])) + 1
	s.widgetRatings[widgetID] = append(s.widgetRatings[widgetID], Rating{Star: star, Count: count})
	s.votedAccounts[accountID] = struct{}{}

	logger.Info().
		Str("widget_id", widgetID).
		Str("account_id", accountID).
		Uint64("star", star).
		Uint64("count", count).
		Msgf("added %d stars to %s with count %d", star, widgetID, count)
}

// GetStar returns the average rating of widgetID. Each rating is weighted by
// its Count, so later ratings weigh more than earlier ones and the result is
// not the arithmetic mean of the stars. The second value is false when the
// widget has no ratings.
func (s *FeedbackState) GetStar(widgetID string) (WidgetStar, bool) {
	ratings := s.widgetRatings[widgetID]
	if len(ratings) == 0 {
		return WidgetStar{}, false
	}

	var totalStars, totalCount uint64
	for _, r := range ratings {
		totalStars += r.Star * r.Count
		totalCount += r.Count
	}

	average := 0.0
	if totalCount > 0 {
		average = float64(totalStars) / float64(totalCount)
	}
	return WidgetStar{WidgetID: widgetID, Average: average}, true
}

// HasVoted reports whether accountID already has a counted rating.
func (s *FeedbackState) HasVoted(accountID string) bool {
	_, ok := s.votedAccounts[accountID]
	return ok
}

// Ratings returns a copy of the rating history of widgetID.
func (s *FeedbackState) Ratings(widgetID string) []Rating {
	ratings := s.widgetRatings[widgetID]
	if ratings == nil {
		return nil
	}
	out := make([]Rating, len(ratings))
	copy(out, ratings)
	return out
}

// FormatFeedback renders a stored feedback entry. The trailing space is part
// of the stored format.
func FormatFeedback(accountID, feedback string) string {
	return fmt.Sprintf("%s said %s ", accountID, feedback)
}

type feedbackStateJSON struct {
	WidgetFeedbacks map[string][]string `json:"widget_feedbacks"`
	WidgetRatings   map[string][]Rating `json:"widget_ratings"`
	VotedAccounts   []string            `json:"voted_accounts"`
}

// MarshalJSON encodes the state as a single snapshot document. Voted
// accounts are written sorted so equal states encode identically.
func (s *FeedbackState) MarshalJSON() ([]byte, error) {
	voted := make([]string, 0, len(s.votedAccounts))
	for account := range s.votedAccounts {
		voted = append(voted, account)
	}
	sort.Strings(voted)

	return json.Marshal(feedbackStateJSON{
		WidgetFeedbacks: s.widgetFeedbacks,
		WidgetRatings:   s.widgetRatings,
		VotedAccounts:   voted,
	})
}

// UnmarshalJSON decodes a snapshot written by MarshalJSON. The logger is
// left untouched.
func (s *FeedbackState) UnmarshalJSON(data []byte) error {
	var raw feedbackStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.widgetFeedbacks = raw.WidgetFeedbacks
	if s.widgetFeedbacks == nil {
		s.widgetFeedbacks = make(map[string][]string)
	}
	s.widgetRatings = raw.WidgetRatings
	if s.widgetRatings == nil {
		s.widgetRatings = make(map[string][]Rating)
	}
	s.votedAccounts = make(map[string]struct{}, len(raw.VotedAccounts))
	for _, account := range raw.VotedAccounts {
		s.votedAccounts[account] = struct{}{}
	}
	return nil
}

// DecodeFeedbackState decodes a persisted snapshot. Empty input yields an
// empty state.
func DecodeFeedbackState(data []byte) (*FeedbackState, error) {
	state := NewFeedbackState()
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to decode feedback state: %w", err)
	}
	return state, nil
}
