package tutorial

import (
	"fmt"
	"math"
	"time"

	"github.com/abhisek/levelup/internal/progress"
)

// Transition records a tutorial status change for event emission.
type Transition struct {
	TutorialID string
	From       progress.TutorialStatus
	To         progress.TutorialStatus
	Trigger    string // "start", "resume", "complete", "skip", "drop-off"
}

// Tracker applies tutorial lifecycle rules to a progress aggregate. It
// holds no user state of its own.
type Tracker struct {
	defs map[string]Definition
}

// NewTracker creates a Tracker over the catalog's tutorial definitions.
func NewTracker(defs []Definition) *Tracker {
	t := &Tracker{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		t.defs[d.ID] = d
	}
	return t
}

// Definition returns the catalog definition for id.
func (t *Tracker) Definition(id string) (Definition, bool) {
	d, ok := t.defs[id]
	return d, ok
}

// Start begins or resumes a tutorial. Resuming never clears completed steps.
func (t *Tracker) Start(d *progress.Data, id string, now time.Time) (Transition, error) {
	if id == "" {
		return Transition{}, ErrEmptyID
	}
	now = now.UTC()
	tp, ok := d.TutorialProgress[id]
	if !ok {
		tp = newProgress(id)
		d.TutorialProgress[id] = tp
	}
	from := tp.Status
	trigger := "resume"
	if tp.StartedAt == nil {
		trigger = "start"
		tp.StartedAt = &now
		d.LearningMetrics.TotalTutorialsStarted++
		progress.RecomputeCompletionRate(&d.LearningMetrics)
	}
	tp.Status = progress.StatusInProgress
	tp.LastAccessedAt = &now
	t.recompute(tp)
	return Transition{TutorialID: id, From: from, To: tp.Status, Trigger: trigger}, nil
}

// StartStep marks a step as attempted.
func (t *Tracker) StartStep(d *progress.Data, id, stepID string, now time.Time) error {
	var existed bool
	if tp, ok := d.TutorialProgress[id]; ok {
		_, existed = tp.StepProgress[stepID]
	}
	tp, sp, err := t.step(d, id, stepID, now)
	if err != nil {
		return err
	}
	if existed && sp.Status != progress.StatusCompleted {
		sp.Attempts++
	}
	if sp.Status != progress.StatusCompleted {
		sp.Status = progress.StatusInProgress
	}
	ts := now.UTC()
	sp.StartedAt = &ts
	tp.LastAccessedAt = &ts
	return nil
}

// CompleteStep marks a step complete and adds timeSpent (seconds). It is
// idempotent: a repeat refreshes the completion time without adding the
// step twice. The result reports whether this was the first completion.
func (t *Tracker) CompleteStep(d *progress.Data, id, stepID string, timeSpent float64, now time.Time) (bool, error) {
	if timeSpent < 0 || math.IsNaN(timeSpent) || math.IsInf(timeSpent, 0) {
		return false, ErrInvalidTime
	}
	tp, sp, err := t.step(d, id, stepID, now)
	if err != nil {
		return false, err
	}
	ts := now.UTC()
	sp.Status = progress.StatusCompleted
	sp.CompletedAt = &ts
	sp.TimeSpent += timeSpent
	tp.TotalTimeSpent += timeSpent
	tp.LastAccessedAt = &ts

	first := !tp.HasCompletedStep(stepID)
	if first {
		tp.StepsCompleted = append(tp.StepsCompleted, stepID)
	}
	t.recompute(tp)
	return first, nil
}

// RecordStepError appends an error to a step.
func (t *Tracker) RecordStepError(d *progress.Data, id, stepID, message string, now time.Time) error {
	_, sp, err := t.step(d, id, stepID, now)
	if err != nil {
		return err
	}
	sp.Errors = append(sp.Errors, progress.StepError{Message: message, At: now.UTC()})
	return nil
}

// UseHint counts a hint against a step.
func (t *Tracker) UseHint(d *progress.Data, id, stepID string, now time.Time) error {
	_, sp, err := t.step(d, id, stepID, now)
	if err != nil {
		return err
	}
	sp.HintsUsed++
	return nil
}

// Complete finishes a tutorial. The global completed counter and average
// completion time only move on a tutorial's first completion.
func (t *Tracker) Complete(d *progress.Data, id string, now time.Time) (Transition, error) {
	tp, ok := d.TutorialProgress[id]
	if !ok || tp.Status == progress.StatusNotStarted {
		return Transition{}, fmt.Errorf("%s: %w", id, ErrNotStarted)
	}
	if tp.Status == progress.StatusCompleted {
		return Transition{}, fmt.Errorf("%s: %w", id, ErrAlreadyCompleted)
	}
	from := tp.Status
	first := tp.CompletedAt == nil
	ts := now.UTC()
	tp.Status = progress.StatusCompleted
	tp.CompletedAt = &ts
	tp.LastAccessedAt = &ts
	t.recompute(tp)

	if first {
		m := &d.LearningMetrics
		m.TotalTutorialsCompleted++
		n := float64(m.TotalTutorialsCompleted)
		m.AverageCompletionTime += (tp.TotalTimeSpent - m.AverageCompletionTime) / n
		progress.RecomputeCompletionRate(m)
	}
	return Transition{TutorialID: id, From: from, To: tp.Status, Trigger: "complete"}, nil
}

// Skip marks a tutorial as skipped, creating its record if needed.
func (t *Tracker) Skip(d *progress.Data, id string, now time.Time) (Transition, error) {
	if id == "" {
		return Transition{}, ErrEmptyID
	}
	tp, ok := d.TutorialProgress[id]
	if !ok {
		tp = newProgress(id)
		d.TutorialProgress[id] = tp
	}
	if tp.Status == progress.StatusCompleted {
		return Transition{}, fmt.Errorf("%s: %w", id, ErrAlreadyCompleted)
	}
	from := tp.Status
	ts := now.UTC()
	tp.Status = progress.StatusSkipped
	tp.LastAccessedAt = &ts
	t.recompute(tp)
	return Transition{TutorialID: id, From: from, To: tp.Status, Trigger: "skip"}, nil
}

// DropOff abandons a tutorial at stepID and logs the drop-off point.
// Step progress is kept.
func (t *Tracker) DropOff(d *progress.Data, id, stepID, reason string, now time.Time) (progress.DropOffPoint, Transition, error) {
	tp, ok := d.TutorialProgress[id]
	if !ok || tp.Status == progress.StatusNotStarted {
		return progress.DropOffPoint{}, Transition{}, fmt.Errorf("%s: %w", id, ErrNotStarted)
	}
	if tp.Status == progress.StatusCompleted {
		return progress.DropOffPoint{}, Transition{}, fmt.Errorf("%s: %w", id, ErrAlreadyCompleted)
	}
	ts := now.UTC()
	from := tp.Status
	tp.Status = progress.StatusAbandoned
	tp.LastAccessedAt = &ts
	t.recompute(tp)

	point := progress.DropOffPoint{TutorialID: id, StepID: stepID, Timestamp: ts, Reason: reason}
	d.LearningMetrics.DropOffPoints = append(d.LearningMetrics.DropOffPoints, point)
	return point, Transition{TutorialID: id, From: from, To: tp.Status, Trigger: "drop-off"}, nil
}

// KnowledgeCheck records a quiz answer and refreshes the global accuracy.
func (t *Tracker) KnowledgeCheck(d *progress.Data, id string, kc progress.KnowledgeCheck, now time.Time) (progress.KnowledgeCheck, error) {
	tp, ok := d.TutorialProgress[id]
	if !ok || tp.Status == progress.StatusNotStarted {
		return kc, fmt.Errorf("%s: %w", id, ErrNotStarted)
	}
	if kc.QuestionID == "" {
		return kc, ErrEmptyID
	}
	if kc.TimeSpent < 0 || math.IsNaN(kc.TimeSpent) || math.IsInf(kc.TimeSpent, 0) {
		return kc, ErrInvalidTime
	}
	kc.Attempts = max(kc.Attempts, 1)
	if kc.AnsweredAt.IsZero() {
		kc.AnsweredAt = now.UTC()
	}
	tp.KnowledgeChecks = append(tp.KnowledgeChecks, kc)
	d.LearningMetrics.KnowledgeCheckAccuracy = accuracy(d)
	return kc, nil
}

// Feedback stores the user's rating of a tutorial, replacing any earlier one.
func (t *Tracker) Feedback(d *progress.Data, id string, fb progress.Feedback, now time.Time) (progress.Feedback, error) {
	tp, ok := d.TutorialProgress[id]
	if !ok || tp.Status == progress.StatusNotStarted {
		return fb, fmt.Errorf("%s: %w", id, ErrNotStarted)
	}
	if fb.Rating < 1 || fb.Rating > 5 {
		return fb, ErrInvalidRating
	}
	fb.SubmittedAt = now.UTC()
	tp.Feedback = &fb
	return fb, nil
}

// Percentage returns the display completion percentage of tp: 100 only
// when completed, otherwise the share of defined steps done, at most 99.
// Tutorials without a definition report 0 until completed.
func (t *Tracker) Percentage(tp *progress.TutorialProgress) float64 {
	if tp.Status == progress.StatusCompleted {
		return 100
	}
	def, ok := t.defs[tp.TutorialID]
	if !ok || len(def.Steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range tp.StepsCompleted {
		if def.HasStep(s) {
			done++
		}
	}
	pct := float64(done) / float64(len(def.Steps)) * 100
	return min(math.Floor(pct), 99)
}

func (t *Tracker) recompute(tp *progress.TutorialProgress) {
	tp.CompletionPercentage = t.Percentage(tp)
}

// step resolves the step record for a started tutorial, creating it on
// first touch. Steps outside a defined tutorial's step set are refused.
func (t *Tracker) step(d *progress.Data, id, stepID string, now time.Time) (*progress.TutorialProgress, *progress.StepProgress, error) {
	if stepID == "" {
		return nil, nil, ErrEmptyID
	}
	tp, ok := d.TutorialProgress[id]
	if !ok || tp.Status == progress.StatusNotStarted {
		return nil, nil, fmt.Errorf("%s: %w", id, ErrNotStarted)
	}
	if def, ok := t.defs[id]; ok && !def.HasStep(stepID) {
		return nil, nil, fmt.Errorf("%s/%s: %w", id, stepID, ErrUnknownStep)
	}
	sp, ok := tp.StepProgress[stepID]
	if !ok {
		ts := now.UTC()
		sp = &progress.StepProgress{
			StepID:    stepID,
			Status:    progress.StatusInProgress,
			StartedAt: &ts,
			Attempts:  1,
			Errors:    []progress.StepError{},
		}
		tp.StepProgress[stepID] = sp
	}
	return tp, sp, nil
}

func newProgress(id string) *progress.TutorialProgress {
	return &progress.TutorialProgress{
		TutorialID:      id,
		Status:          progress.StatusNotStarted,
		StepsCompleted:  []string{},
		StepProgress:    make(map[string]*progress.StepProgress),
		KnowledgeChecks: []progress.KnowledgeCheck{},
	}
}

func accuracy(d *progress.Data) float64 {
	var total, correct int
	for _, tp := range d.TutorialProgress {
		for _, kc := range tp.KnowledgeChecks {
			total++
			if kc.Correct {
				correct++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}
