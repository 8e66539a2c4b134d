package learning

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const docKey = "learning_data"

// Caps bound every accumulated list so the engine cannot grow without limit.
type Caps struct {
	PopularQuestions int
	RatedResponses   int
	Insights         int
	ResponseTimes    int
}

// DefaultCaps mirror the bounds the engine ships with.
var DefaultCaps = Caps{
	PopularQuestions: 100,
	RatedResponses:   50,
	Insights:         100,
	ResponseTimes:    1000,
}

// Question is one normalized user question with its ask count.
type Question struct {
	Question   string    `json:"question"`
	Normalized string    `json:"normalized"`
	Category   string    `json:"category"`
	Count      int       `json:"count"`
	LastAsked  time.Time `json:"lastAsked"`
}

// Feedback is one rated response, kept in the positive or negative bucket.
type Feedback struct {
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Category  string    `json:"category,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Insight is a derived observation, either distilled from a feedback
// comment at ingest time or produced by an analysis pass.
type Insight struct {
	Type        string    `json:"type"`
	Category    string    `json:"category,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Record is the engine's full persisted state.
type Record struct {
	PopularQuestions []Question `json:"popularQuestions"`
	PositiveFeedback []Feedback `json:"positiveFeedback"`
	NegativeFeedback []Feedback `json:"negativeFeedback"`
	Insights         []Insight  `json:"insights"`
	ResponseTimes    []int64    `json:"responseTimes"`
	TotalMessages    int64      `json:"totalMessages"`
	TotalEscalations int64      `json:"totalEscalations"`
	TotalRatings     int64      `json:"totalRatings"`
	RatingSum        int64      `json:"ratingSum"`
	LastAnalysis     time.Time  `json:"lastAnalysis,omitempty"`
}

// Report is the read-only view handed to the admin endpoints.
type Report struct {
	TopQuestions        []Question `json:"topQuestions"`
	TotalMessages       int64      `json:"totalMessages"`
	TotalEscalations    int64      `json:"totalEscalations"`
	AverageRating       float64    `json:"averageRating"`
	AverageResponseTime float64    `json:"averageResponseTimeMs"`
	PositiveCount       int        `json:"positiveCount"`
	NegativeCount       int        `json:"negativeCount"`
	Insights            []Insight  `json:"insights"`
	LastAnalysis        time.Time  `json:"lastAnalysis,omitempty"`
}

// Engine accumulates usage signals and derives insights from them.
// All mutating methods are safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	data   Record
	docs   DocStore
	caps   Caps
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(docs DocStore, caps Caps) *Engine {
	if caps.PopularQuestions <= 0 {
		caps.PopularQuestions = DefaultCaps.PopularQuestions
	}
	if caps.RatedResponses <= 0 {
		caps.RatedResponses = DefaultCaps.RatedResponses
	}
	if caps.Insights <= 0 {
		caps.Insights = DefaultCaps.Insights
	}
	if caps.ResponseTimes <= 0 {
		caps.ResponseTimes = DefaultCaps.ResponseTimes
	}
	engine := &Engine{
		docs:   docs,
		caps:   caps,
		logger: slog.Default(),
		now:    time.Now,
	}
	engine.restore()
	return engine
}

// SetClock overrides the time source. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

func (e *Engine) restore() {
	if e.docs == nil {
		return
	}
	raw, err := e.docs.Load(context.Background(), docKey)
	if errors.Is(err, ErrDocNotFound) {
		return
	}
	if err != nil {
		e.logger.Warn("failed to restore learning data", "error", err)
		return
	}
	if err := json.Unmarshal(raw, &e.data); err != nil {
		e.logger.Warn("failed to decode learning data, starting empty", "error", err)
		e.data = Record{}
	}
}

// persist saves the current state. Best effort, called with the lock held.
func (e *Engine) persist() {
	if e.docs == nil {
		return
	}
	raw, err := json.Marshal(e.data)
	if err != nil {
		e.logger.Warn("failed to encode learning data", "error", err)
		return
	}
	if err := e.docs.Save(context.Background(), docKey, raw); err != nil {
		e.logger.Warn("failed to save learning data", "error", err)
	}
}

// TrackQuestion records one asked question, deduplicating by its
// normalized form. When the list is full the least asked entry is evicted.
func (e *Engine) TrackQuestion(message string) {
	normalized := Normalize(message)
	if normalized == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.data.PopularQuestions {
		if e.data.PopularQuestions[i].Normalized == normalized {
			e.data.PopularQuestions[i].Count++
			e.data.PopularQuestions[i].LastAsked = e.now()
			e.persist()
			return
		}
	}

	if len(e.data.PopularQuestions) >= e.caps.PopularQuestions {
		evict := 0
		for i := range e.data.PopularQuestions {
			if e.data.PopularQuestions[i].Count < e.data.PopularQuestions[evict].Count {
				evict = i
			}
		}
		e.data.PopularQuestions = append(
			e.data.PopularQuestions[:evict], e.data.PopularQuestions[evict+1:]...)
	}

	e.data.PopularQuestions = append(e.data.PopularQuestions, Question{
		Question:   message,
		Normalized: normalized,
		Category:   Categorize(normalized),
		Count:      1,
		LastAsked:  e.now(),
	})
	e.persist()
}

// RecordFeedback files a rating into the positive or negative bucket and
// returns the running average. Ratings of 3 count toward the average but
// join neither bucket. A bucketed rating with a comment also yields an
// insight, so the report surfaces what users actually wrote.
func (e *Engine) RecordFeedback(rating int, comment, category string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rating < 1 || rating > 5 {
		return averageRatingLocked(&e.data)
	}

	e.data.TotalRatings++
	e.data.RatingSum += int64(rating)

	entry := Feedback{
		Rating:    rating,
		Comment:   comment,
		Category:  category,
		Timestamp: e.now(),
	}
	var insightType string
	switch {
	case rating >= 4:
		e.data.PositiveFeedback = appendCapped(e.data.PositiveFeedback, entry, e.caps.RatedResponses)
		insightType = "positive"
	case rating <= 2:
		e.data.NegativeFeedback = appendCapped(e.data.NegativeFeedback, entry, e.caps.RatedResponses)
		insightType = "negative"
	}
	if insightType != "" && comment != "" {
		e.data.Insights = appendCapped(e.data.Insights, Insight{
			Type:      insightType,
			Category:  category,
			Comment:   comment,
			CreatedAt: e.now(),
		}, e.caps.Insights)
	}
	e.persist()
	return averageRatingLocked(&e.data)
}

// RecordMessage counts one handled turn and its response time.
func (e *Engine) RecordMessage(responseTimeMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.data.TotalMessages++
	e.data.ResponseTimes = appendCapped(e.data.ResponseTimes, responseTimeMs, e.caps.ResponseTimes)
	e.persist()
}

// RecordEscalation counts one handoff to a human.
func (e *Engine) RecordEscalation() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.data.TotalEscalations++
	e.persist()
}

// Analyze derives insights from the accumulated data and appends them.
func (e *Engine) Analyze() []Insight {
	e.mu.Lock()
	defer e.mu.Unlock()

	var fresh []Insight
	now := e.now()

	if top := e.topQuestionsLocked(1); len(top) > 0 && top[0].Count >= 3 {
		fresh = append(fresh, Insight{
			Type: "popular_topic",
			Description: "Most asked question (" + strconv.Itoa(top[0].Count) + " times): " +
				top[0].Question,
			CreatedAt: now,
		})
	}

	if themes := negativeThemes(e.data.NegativeFeedback); len(themes) > 0 {
		fresh = append(fresh, Insight{
			Type:        "negative_theme",
			Description: "Recurring complaints: " + strings.Join(themes, ", "),
			CreatedAt:   now,
		})
	}

	if avg := averageRatingLocked(&e.data); e.data.TotalRatings >= 5 && avg < 3.0 {
		fresh = append(fresh, Insight{
			Type:        "low_satisfaction",
			Description: "Average rating has fallen below 3.0",
			CreatedAt:   now,
		})
	}

	for _, insight := range fresh {
		e.data.Insights = appendCapped(e.data.Insights, insight, e.caps.Insights)
	}
	e.data.LastAnalysis = now
	e.persist()
	return fresh
}

// Snapshot returns the current aggregate view.
func (e *Engine) Snapshot() Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := Report{
		TopQuestions:     e.topQuestionsLocked(10),
		TotalMessages:    e.data.TotalMessages,
		TotalEscalations: e.data.TotalEscalations,
		AverageRating:    averageRatingLocked(&e.data),
		PositiveCount:    len(e.data.PositiveFeedback),
		NegativeCount:    len(e.data.NegativeFeedback),
		Insights:         append([]Insight(nil), e.data.Insights...),
		LastAnalysis:     e.data.LastAnalysis,
	}
	if n := len(e.data.ResponseTimes); n > 0 {
		var sum int64
		for _, ms := range e.data.ResponseTimes {
			sum += ms
		}
		report.AverageResponseTime = float64(sum) / float64(n)
	}
	return report
}

func (e *Engine) topQuestionsLocked(n int) []Question {
	top := append([]Question(nil), e.data.PopularQuestions...)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Count > top[j].Count
	})
	if len(top) > n {
		top = top[:n]
	}
	return top
}

func averageRatingLocked(data *Record) float64 {
	if data.TotalRatings == 0 {
		return 0
	}
	return float64(data.RatingSum) / float64(data.TotalRatings)
}

// appendCapped appends and drops the oldest entries past the cap.
func appendCapped[T any](list []T, item T, cap int) []T {
	list = append(list, item)
	if len(list) > cap {
		list = list[len(list)-cap:]
	}
	return list
}
