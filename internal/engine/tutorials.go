package engine

import (
	"go.uber.org/zap"

	"github.com/abhisek/levelup/internal/progress"
)

// StartTutorial starts or resumes a tutorial.
func (e *Engine) StartTutorial(id string) bool {
	return e.update(func(tx *txn) bool {
		t, err := e.tutorials.Start(tx.d, id, tx.now)
		if err != nil {
			e.log.Debug("start tutorial refused", zap.String("tutorial", id), zap.Error(err))
			return false
		}
		tx.emit(EventTutorialStarted, t)
		return true
	})
}

// SkipTutorial marks a tutorial as skipped.
func (e *Engine) SkipTutorial(id string) bool {
	return e.update(func(tx *txn) bool {
		if _, err := e.tutorials.Skip(tx.d, id, tx.now); err != nil {
			e.log.Debug("skip tutorial refused", zap.String("tutorial", id), zap.Error(err))
			return false
		}
		return true
	})
}

// StartStep records an attempt at a step.
func (e *Engine) StartStep(id, stepID string) bool {
	return e.update(func(tx *txn) bool {
		if err := e.tutorials.StartStep(tx.d, id, stepID, tx.now); err != nil {
			e.log.Debug("start step refused", zap.String("tutorial", id), zap.String("step", stepID), zap.Error(err))
			return false
		}
		return true
	})
}

// MarkStepComplete marks a step complete, adding timeSpent seconds. Marking
// a step twice keeps a single entry.
func (e *Engine) MarkStepComplete(id, stepID string, timeSpent float64) bool {
	return e.update(func(tx *txn) bool {
		first, err := e.tutorials.CompleteStep(tx.d, id, stepID, timeSpent, tx.now)
		if err != nil {
			e.log.Debug("complete step refused", zap.String("tutorial", id), zap.String("step", stepID), zap.Error(err))
			return false
		}
		tx.emit(EventStepCompleted, StepPayload{TutorialID: id, StepID: stepID, TimeSpent: timeSpent, FirstCompletion: first})
		return true
	})
}

// RecordStepError logs a mistake against a step.
func (e *Engine) RecordStepError(id, stepID, message string) bool {
	return e.update(func(tx *txn) bool {
		if err := e.tutorials.RecordStepError(tx.d, id, stepID, message, tx.now); err != nil {
			e.log.Debug("step error refused", zap.String("tutorial", id), zap.String("step", stepID), zap.Error(err))
			return false
		}
		return true
	})
}

// UseHint counts a hint against a step.
func (e *Engine) UseHint(id, stepID string) bool {
	return e.update(func(tx *txn) bool {
		if err := e.tutorials.UseHint(tx.d, id, stepID, tx.now); err != nil {
			e.log.Debug("hint refused", zap.String("tutorial", id), zap.String("step", stepID), zap.Error(err))
			return false
		}
		return true
	})
}

// MarkTutorialComplete completes a started tutorial.
func (e *Engine) MarkTutorialComplete(id string) bool {
	return e.update(func(tx *txn) bool {
		t, err := e.tutorials.Complete(tx.d, id, tx.now)
		if err != nil {
			e.log.Debug("complete tutorial refused", zap.String("tutorial", id), zap.Error(err))
			return false
		}
		tx.emit(EventTutorialCompleted, t)
		tx.evaluate()
		return true
	})
}

// RecordDropOff abandons a tutorial at stepID.
func (e *Engine) RecordDropOff(id, stepID, reason string) bool {
	return e.update(func(tx *txn) bool {
		point, _, err := e.tutorials.DropOff(tx.d, id, stepID, reason, tx.now)
		if err != nil {
			e.log.Debug("drop-off refused", zap.String("tutorial", id), zap.Error(err))
			return false
		}
		tx.emit(EventDropOff, point)
		return true
	})
}

// RecordKnowledgeCheck stores a quiz answer for a tutorial.
func (e *Engine) RecordKnowledgeCheck(id string, check progress.KnowledgeCheck) bool {
	return e.update(func(tx *txn) bool {
		kc, err := e.tutorials.KnowledgeCheck(tx.d, id, check, tx.now)
		if err != nil {
			e.log.Debug("knowledge check refused", zap.String("tutorial", id), zap.Error(err))
			return false
		}
		tx.emit(EventKnowledgeCheck, KnowledgeCheckPayload{TutorialID: id, Check: kc})
		tx.evaluate()
		return true
	})
}

// SubmitFeedback stores the user's rating of a tutorial.
func (e *Engine) SubmitFeedback(id string, fb progress.Feedback) bool {
	return e.update(func(tx *txn) bool {
		stored, err := e.tutorials.Feedback(tx.d, id, fb, tx.now)
		if err != nil {
			e.log.Debug("feedback refused", zap.String("tutorial", id), zap.Error(err))
			return false
		}
		tx.emit(EventFeedbackSubmitted, FeedbackPayload{TutorialID: id, Feedback: stored})
		return true
	})
}

// TutorialProgress returns a copy of a tutorial's progress.
func (e *Engine) TutorialProgress(id string) (*progress.TutorialProgress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tp, ok := e.data.TutorialProgress[id]
	if !ok {
		return nil, false
	}
	return tp.Clone(), true
}
