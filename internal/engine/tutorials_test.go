package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/levelup/internal/progress"
	"github.com/abhisek/levelup/internal/tutorial"
)

func TestMarkStepCompleteTwiceKeepsOneEntry(t *testing.T) {
	e := newTestEngine(t)
	require.True(t, e.StartTutorial("t1"))
	require.True(t, e.MarkStepComplete("t1", "s1", 30))
	require.True(t, e.MarkStepComplete("t1", "s1", 15))

	tp, ok := e.TutorialProgress("t1")
	require.True(t, ok)
	assert.Equal(t, []string{"s1"}, tp.StepsCompleted)
	assert.Equal(t, 45.0, tp.TotalTimeSpent)
	assert.Zero(t, tp.CompletionPercentage, "undefined tutorials report 0 until completed")

	steps := e.events.of(EventStepCompleted)
	require.Len(t, steps, 2)
	assert.True(t, steps[0].Payload.(StepPayload).FirstCompletion)
	assert.False(t, steps[1].Payload.(StepPayload).FirstCompletion)
}

func TestStepOperationsRequireStart(t *testing.T) {
	e := newTestEngine(t)
	assert.False(t, e.MarkStepComplete("getting_started", "welcome", 1))
	assert.False(t, e.StartStep("getting_started", "welcome"))
	assert.False(t, e.UseHint("getting_started", "welcome"))
	assert.False(t, e.MarkTutorialComplete("getting_started"))
	assert.False(t, e.RecordDropOff("getting_started", "welcome", "bored"))

	_, ok := e.TutorialProgress("getting_started")
	assert.False(t, ok)
	assert.Empty(t, e.events.of(EventStepCompleted))
}

func TestTutorialLifecycle(t *testing.T) {
	e := newTestEngine(t)

	require.True(t, e.StartTutorial("getting_started"))
	started := e.events.of(EventTutorialStarted)
	require.Len(t, started, 1)
	assert.Equal(t, tutorial.Transition{
		TutorialID: "getting_started",
		From:       progress.StatusNotStarted,
		To:         progress.StatusInProgress,
		Trigger:    "start",
	}, started[0].Payload)

	require.True(t, e.StartStep("getting_started", "welcome"))
	require.True(t, e.UseHint("getting_started", "welcome"))
	require.True(t, e.RecordStepError("getting_started", "welcome", "typo"))
	require.True(t, e.MarkStepComplete("getting_started", "welcome", 20))
	assert.False(t, e.MarkStepComplete("getting_started", "no_such_step", 1))

	tp, ok := e.TutorialProgress("getting_started")
	require.True(t, ok)
	assert.Equal(t, 25.0, tp.CompletionPercentage)
	sp := tp.StepProgress["welcome"]
	require.NotNil(t, sp)
	assert.Equal(t, 1, sp.Attempts)
	assert.Equal(t, 1, sp.HintsUsed)
	require.Len(t, sp.Errors, 1)
	assert.Equal(t, "typo", sp.Errors[0].Message)

	for _, step := range []string{"first_prompt", "read_output", "adjust_temperature"} {
		require.True(t, e.MarkStepComplete("getting_started", step, 10))
	}
	tp, _ = e.TutorialProgress("getting_started")
	assert.Equal(t, 99.0, tp.CompletionPercentage, "100 is reserved for completed tutorials")

	require.True(t, e.MarkTutorialComplete("getting_started"))
	assert.False(t, e.MarkTutorialComplete("getting_started"))

	tp, _ = e.TutorialProgress("getting_started")
	assert.Equal(t, progress.StatusCompleted, tp.Status)
	assert.Equal(t, 100.0, tp.CompletionPercentage)
	require.Len(t, e.events.of(EventTutorialCompleted), 1)

	d := e.ExportData()
	assert.Equal(t, 1, d.LearningMetrics.TotalTutorialsStarted)
	assert.Equal(t, 1, d.LearningMetrics.TotalTutorialsCompleted)
	assert.Equal(t, 1.0, d.LearningMetrics.CompletionRate)
	assert.Equal(t, 50.0, d.LearningMetrics.AverageCompletionTime)
	assert.True(t, d.HasAchievement("tutorial_graduate"))
}

func TestResumeKeepsCompletedSteps(t *testing.T) {
	e := newTestEngine(t)
	require.True(t, e.StartTutorial("prompt_engineering"))
	require.True(t, e.MarkStepComplete("prompt_engineering", "roles", 5))
	require.True(t, e.RecordDropOff("prompt_engineering", "few_shot", "too long"))

	tp, _ := e.TutorialProgress("prompt_engineering")
	assert.Equal(t, progress.StatusAbandoned, tp.Status)

	drops := e.events.of(EventDropOff)
	require.Len(t, drops, 1)
	point := drops[0].Payload.(progress.DropOffPoint)
	assert.Equal(t, "few_shot", point.StepID)
	assert.Equal(t, "too long", point.Reason)

	require.True(t, e.StartTutorial("prompt_engineering"))
	tp, _ = e.TutorialProgress("prompt_engineering")
	assert.Equal(t, progress.StatusInProgress, tp.Status)
	assert.Equal(t, []string{"roles"}, tp.StepsCompleted)

	resumed := e.events.of(EventTutorialStarted)
	require.Len(t, resumed, 2)
	assert.Equal(t, "resume", resumed[1].Payload.(tutorial.Transition).Trigger)

	d := e.ExportData()
	assert.Equal(t, 1, d.LearningMetrics.TotalTutorialsStarted, "resume is not a new start")
	assert.Len(t, d.LearningMetrics.DropOffPoints, 1)
}

func TestSkipTutorial(t *testing.T) {
	e := newTestEngine(t)
	require.True(t, e.SkipTutorial("model_comparison"))
	tp, ok := e.TutorialProgress("model_comparison")
	require.True(t, ok)
	assert.Equal(t, progress.StatusSkipped, tp.Status)
	assert.Zero(t, e.ExportData().LearningMetrics.TotalTutorialsStarted)

	require.True(t, e.StartTutorial("model_comparison"))
	assert.Equal(t, 1, e.ExportData().LearningMetrics.TotalTutorialsStarted)
}

func TestKnowledgeChecksAndFeedback(t *testing.T) {
	e := newTestEngine(t)
	require.True(t, e.StartTutorial("getting_started"))

	require.True(t, e.RecordKnowledgeCheck("getting_started", progress.KnowledgeCheck{QuestionID: "q1", Correct: true, TimeSpent: 4}))
	require.True(t, e.RecordKnowledgeCheck("getting_started", progress.KnowledgeCheck{QuestionID: "q2", Correct: false}))
	assert.False(t, e.RecordKnowledgeCheck("getting_started", progress.KnowledgeCheck{}))
	assert.False(t, e.RecordKnowledgeCheck("prompt_engineering", progress.KnowledgeCheck{QuestionID: "q1"}))

	checks := e.events.of(EventKnowledgeCheck)
	require.Len(t, checks, 2)
	kc := checks[0].Payload.(KnowledgeCheckPayload).Check
	assert.Equal(t, 1, kc.Attempts)
	assert.Equal(t, testNow, kc.AnsweredAt)

	assert.Equal(t, 0.5, e.ExportData().LearningMetrics.KnowledgeCheckAccuracy)

	assert.False(t, e.SubmitFeedback("getting_started", progress.Feedback{Rating: 0}))
	assert.False(t, e.SubmitFeedback("getting_started", progress.Feedback{Rating: 6}))
	require.True(t, e.SubmitFeedback("getting_started", progress.Feedback{Rating: 4, Comment: "nice"}))

	tp, _ := e.TutorialProgress("getting_started")
	require.NotNil(t, tp.Feedback)
	assert.Equal(t, 4, tp.Feedback.Rating)
	assert.Equal(t, testNow, tp.Feedback.SubmittedAt)
	require.Len(t, e.events.of(EventFeedbackSubmitted), 1)
}

func TestTutorialProgressIsACopy(t *testing.T) {
	e := newTestEngine(t)
	require.True(t, e.StartTutorial("t1"))
	require.True(t, e.MarkStepComplete("t1", "s1", 1))

	tp, _ := e.TutorialProgress("t1")
	tp.StepsCompleted[0] = "mutated"
	tp.StepProgress["s1"].HintsUsed = 9

	again, _ := e.TutorialProgress("t1")
	assert.Equal(t, []string{"s1"}, again.StepsCompleted)
	assert.Zero(t, again.StepProgress["s1"].HintsUsed)
}
