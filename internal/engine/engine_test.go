package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/levelup/internal/progress"
	"github.com/abhisek/levelup/internal/store"
)

func TestInitializeEmitsInitialized(t *testing.T) {
	e := newTestEngine(t)

	got := e.events.of(EventInitialized)
	require.Len(t, got, 1)
	p := got[0].Payload.(InitializedPayload)
	assert.Equal(t, "u1", p.UserID)
	assert.False(t, p.Restored)
	assert.Equal(t, e.SessionID(), p.SessionID)
	assert.NotEmpty(t, p.SessionID)

	d := e.ExportData()
	assert.Equal(t, 1, d.UserProfile.CurrentLevel)
	require.Len(t, d.AnalyticsData.Sessions, 1)
}

func TestInitializeIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Initialize(context.Background()))
	assert.Len(t, e.events.of(EventInitialized), 1)
}

func TestSaveAndRestore(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()

	first := newTestEngineOn(t, backend)
	require.True(t, first.AwardEnergy(40, "test"))
	require.True(t, first.StartTutorial("getting_started"))
	require.NoError(t, first.Save(ctx))
	assert.Len(t, first.events.of(EventSaved), 1)

	raw, err := backend.Get(ctx, StorageKey("u1"))
	require.NoError(t, err)
	require.NotNil(t, raw)

	second := newTestEngineOn(t, backend)
	p := second.events.of(EventInitialized)[0].Payload.(InitializedPayload)
	assert.True(t, p.Restored)

	d := second.ExportData()
	assert.Equal(t, 40.0, d.UserProfile.Energy.AvailableEnergy)
	assert.Contains(t, d.TutorialProgress, "getting_started")
	assert.Len(t, d.AnalyticsData.Sessions, 2, "previous session plus the new one")
}

func TestFailedSaveKeepsPreviousData(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.True(t, e.AwardEnergy(10, "first"))
	require.NoError(t, e.Save(ctx))
	before, err := e.backend.Get(ctx, StorageKey("u1"))
	require.NoError(t, err)

	boom := errors.New("disk full")
	e.backend.FailWrites(boom)
	require.True(t, e.AwardEnergy(90, "second"), "mutators keep working")
	err = e.Save(ctx)
	assert.ErrorIs(t, err, boom)

	errs := e.events.of(EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "save", errs[0].Payload.(ErrorPayload).Op)

	after, err := e.backend.Get(ctx, StorageKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 100.0, e.ExportData().UserProfile.Energy.AvailableEnergy)

	e.backend.FailWrites(nil)
	require.NoError(t, e.Save(ctx))
}

func TestFailedLoadSuspendsSaving(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, StorageKey("u1"), []byte(`{"userProfile":{"currentLevel":4}}`)))
	backend.FailReads(errors.New("io error"))

	e := newTestEngineOn(t, backend)
	require.Len(t, e.events.of(EventError), 1)
	assert.Equal(t, 1, e.ExportData().UserProfile.CurrentLevel, "continues from defaults")

	assert.ErrorIs(t, e.Save(ctx), ErrPersistenceSuspended)
	backend.FailReads(nil)
	raw, err := backend.Get(ctx, StorageKey("u1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"userProfile":{"currentLevel":4}}`, string(raw))

	require.NoError(t, e.ClearAllData(ctx))
	require.NoError(t, e.Save(ctx))
}

func TestUninitializedEngineNeverSaves(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()

	first := newTestEngineOn(t, backend)
	require.True(t, first.AwardEnergy(500, "seed"))
	require.NoError(t, first.Destroy(ctx))
	writes := backend.WriteCount()

	idle := New(backend, "u1", WithAutosaveInterval(0))
	assert.ErrorIs(t, idle.Save(ctx), ErrPersistenceSuspended)
	assert.ErrorIs(t, idle.Destroy(ctx), ErrPersistenceSuspended)
	assert.Equal(t, writes, backend.WriteCount())

	reloaded := newTestEngineOn(t, backend)
	assert.Equal(t, 500.0, reloaded.ExportData().UserProfile.Energy.TotalEnergy)
}

func TestImportRestoresInvariants(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	tutorials := map[string]*progress.TutorialProgress{
		"t1": {TutorialID: "t1", Status: progress.StatusCompleted, CompletionPercentage: 40},
		"t2": {TutorialID: "t2", Status: progress.StatusInProgress, CompletionPercentage: 100,
			StepsCompleted: []string{"a", "a"}},
	}
	require.NoError(t, e.ImportData(ctx, progress.Partial{TutorialProgress: tutorials}))

	d := e.ExportData()
	assert.Equal(t, 100.0, d.TutorialProgress["t1"].CompletionPercentage)
	assert.Equal(t, 99.0, d.TutorialProgress["t2"].CompletionPercentage)
	assert.Equal(t, []string{"a"}, d.TutorialProgress["t2"].StepsCompleted)
}

func TestRefusalsAreNotLoggedAsErrors(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	e := newTestEngine(t, WithLogger(zap.New(core)))

	assert.False(t, e.SpendEnergy(1000, "too much"))
	assert.False(t, e.LevelUp(3), "levels cannot be skipped")
	assert.False(t, e.MarkTutorialComplete("never_started"))
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.NotZero(t, logs.FilterMessage("energy spend refused").Len())
	assert.NotZero(t, logs.FilterMessage("level up refused").Len())

	e.backend.FailWrites(errors.New("disk full"))
	assert.Error(t, e.Save(ctx))
	errs := logs.FilterLevelExact(zapcore.ErrorLevel).AllUntimed()
	require.Len(t, errs, 1)
	assert.Equal(t, "save failed", errs[0].Message)
	e.backend.FailWrites(nil)
}

func TestCorruptSnapshotLoadsDefaults(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, StorageKey("u1"), []byte(`[1,2,3]`)))

	e := newTestEngineOn(t, backend)
	errs := e.events.of(EventError)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0].Payload.(ErrorPayload).Err, progress.ErrInvalidSnapshot)
	assert.Equal(t, 1, e.ExportData().UserProfile.CurrentLevel)
}

func TestExportIsDetached(t *testing.T) {
	e := newTestEngine(t)
	require.True(t, e.AwardEnergy(5, "x"))

	d := e.ExportData()
	d.UserProfile.Energy.AvailableEnergy = 999
	d.FeatureUsage.Metrics["prompts_completed"] = 42
	d.UserProfile.Achievements = append(d.UserProfile.Achievements, progress.AchievementRecord{AchievementID: "fake"})

	again := e.ExportData()
	assert.Equal(t, 5.0, again.UserProfile.Energy.AvailableEnergy)
	assert.NotContains(t, again.FeatureUsage.Metrics, "prompts_completed")
	assert.Empty(t, again.UserProfile.Achievements)
}

func TestImportExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.True(t, e.AwardEnergy(120, "seed"))
	require.True(t, e.StartTutorial("getting_started"))
	require.True(t, e.MarkStepComplete("getting_started", "welcome", 12))
	require.True(t, e.IncrementMetric("prompts_completed", 3))
	require.True(t, e.RecordModelUsage("gpt-4o"))
	require.True(t, e.TrackEvent("opened_settings", map[string]any{"tab": "models"}))
	_, _ = e.AssignABTest("onboarding", "b")

	before := e.ExportData()
	require.NoError(t, e.ImportData(ctx, progress.PartialFrom(&before)))
	after := e.ExportData()

	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("round trip changed the aggregate (-before +after):\n%s", diff)
	}
	assert.Len(t, e.events.of(EventDataImported), 1)
}

func TestImportDataIsShallowAndSaves(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.True(t, e.AwardEnergy(50, "seed"))

	profile := e.ExportData().UserProfile
	profile.ExperiencePoints = 70
	require.NoError(t, e.ImportData(ctx, progress.Partial{UserProfile: &profile}))

	d := e.ExportData()
	assert.Equal(t, 70, d.UserProfile.ExperiencePoints)
	assert.Equal(t, 50.0, d.UserProfile.Energy.AvailableEnergy)
	assert.Equal(t, "u1", d.UserID)
	assert.Equal(t, 1, e.backend.WriteCount())

	ev := e.events.of(EventDataImported)[0].Payload.(ImportPayload)
	assert.Equal(t, []string{"userProfile"}, ev.Fields)

	// Mutating the caller's copy after import does not leak in.
	profile.ExperiencePoints = 5
	assert.Equal(t, 70, e.ExportData().UserProfile.ExperiencePoints)
}

func TestImportJSONValidates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	err := e.ImportJSON(ctx, []byte(`{"userProfile":{"currentLevel":"three"}}`))
	var verr *progress.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, e.events.of(EventDataImported))

	raw, err := e.ExportJSON()
	require.NoError(t, err)
	require.NoError(t, e.ImportJSON(ctx, raw))
}

func TestClearAllDataMatchesFreshUser(t *testing.T) {
	ctx := context.Background()
	used := newTestEngine(t)
	require.True(t, used.AwardEnergy(500, "seed"))
	require.True(t, used.IncrementMetric("prompts_completed", 5))
	require.True(t, used.AddExperiencePoints(150))
	require.True(t, used.StartTutorial("getting_started"))
	require.NoError(t, used.Save(ctx))

	require.NoError(t, used.ClearAllData(ctx))
	assert.Len(t, used.events.of(EventDataCleared), 1)
	raw, err := used.backend.Get(ctx, StorageKey("u1"))
	require.NoError(t, err)
	assert.Nil(t, raw)

	fresh := newTestEngine(t)
	opts := cmp.Options{
		cmpopts.IgnoreFields(progress.SessionRecord{}, "SessionID"),
		cmpopts.EquateEmpty(),
	}
	if diff := cmp.Diff(fresh.ExportData(), used.ExportData(), opts); diff != "" {
		t.Errorf("cleared aggregate differs from a fresh one (-fresh +cleared):\n%s", diff)
	}
}

func TestDestroyFlushesAndReleases(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.True(t, e.AwardEnergy(7, "x"))

	require.NoError(t, e.Destroy(ctx))
	require.NoError(t, e.Destroy(ctx))

	kinds := e.events.kinds()
	assert.Equal(t, []EventKind{EventSessionEnded, EventSaved}, kinds[len(kinds)-2:])

	raw, err := e.backend.Get(ctx, StorageKey("u1"))
	require.NoError(t, err)
	var d progress.Data
	require.NoError(t, json.Unmarshal(raw, &d))
	assert.Equal(t, 7.0, d.UserProfile.Energy.TotalEnergy)
	require.Len(t, d.AnalyticsData.Sessions, 1)
	assert.NotNil(t, d.AnalyticsData.Sessions[0].EndTime)

	n := len(e.events.kinds())
	e.AwardEnergy(1, "after")
	assert.Len(t, e.events.kinds(), n, "subscribers are released")
}

func TestAutosaveStopsOnDestroy(t *testing.T) {
	backend := store.NewMemoryBackend()
	e := New(backend, "u1", WithAutosaveInterval(5*time.Millisecond))
	saved := make(chan struct{}, 1)
	e.Subscribe(EventSaved, func(Event) {
		select {
		case saved <- struct{}{}:
		default:
		}
	})
	require.NoError(t, e.Initialize(context.Background()))

	select {
	case <-saved:
	case <-time.After(5 * time.Second):
		t.Fatal("autosave never ran")
	}
	require.NoError(t, e.Destroy(context.Background()))
	// goleak in TestMain verifies the loop exited.
}

func TestHandlersMayCallBack(t *testing.T) {
	e := newTestEngine(t)
	var seen float64
	e.Subscribe(EventAchievementEarned, func(Event) {
		seen = e.ExportData().UserProfile.Energy.TotalEnergy
		e.TrackEvent("celebrated", nil)
	})
	require.True(t, e.IncrementMetric("prompts_completed", 1))
	assert.Equal(t, 10.0, seen)
}

func TestHandlerPanicIsContained(t *testing.T) {
	e := newTestEngine(t)
	e.Subscribe(EventExperienceGained, func(Event) { panic("bad handler") })
	assert.NotPanics(t, func() { e.AddExperiencePoints(1) })
	assert.Equal(t, 1, e.ExportData().UserProfile.ExperiencePoints)
}

func TestUnsubscribe(t *testing.T) {
	e := newTestEngine(t)
	var calls int
	unsubscribe := e.Subscribe(EventExperienceGained, func(Event) { calls++ })
	e.AddExperiencePoints(1)
	unsubscribe()
	unsubscribe()
	e.AddExperiencePoints(1)
	assert.Equal(t, 1, calls)
}
