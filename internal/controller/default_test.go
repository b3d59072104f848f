package controller

import (
	"context"
	"testing"
	"time"

	"github.com/dyluth/democrite/internal/storage"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	past   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now    = past.Add(time.Hour)
	future = past.Add(2 * time.Hour)
)

func newDefault(t *testing.T, options map[string]string) *Default {
	t.Helper()
	c := NewDefault(Deps{}).(*Default)
	require.NoError(t, c.Initialize(context.Background(), blackboard.BoardID{UID: uuid.New(), Name: "b"}, options))
	return c
}

func conflict(status blackboard.RecordStatus, created time.Time) blackboard.RecordMetadata {
	return blackboard.RecordMetadata{
		UID:         uuid.New(),
		LogicalType: "doc",
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func candidateAt(created time.Time) *blackboard.DataRecord {
	r := blackboard.NewDataRecord(uuid.New(), "doc", "new", "payload")
	r.CreatedAt = created
	r.UpdatedAt = created
	return r
}

func TestDefault_Reject(t *testing.T) {
	c := newDefault(t, nil)
	issue := &blackboard.MaxRecordIssue{
		MaxRecordAllow:  1,
		ConflictRecords: []blackboard.RecordMetadata{conflict(blackboard.RecordStatusReady, past)},
	}

	cmds, err := c.ResolvePushIssue(context.Background(), issue, candidateAt(now))
	require.NoError(t, err)
	assert.Empty(t, cmds, "reject mode returns no remediation")
}

func TestDefault_ClearAll(t *testing.T) {
	c := newDefault(t, map[string]string{OptionResolution: "ClearAll"})
	existing := conflict(blackboard.RecordStatusReady, past)
	cand := candidateAt(now)

	cmds, err := c.ResolvePushIssue(context.Background(), &blackboard.MaxRecordIssue{
		MaxRecordAllow:  1,
		ConflictRecords: []blackboard.RecordMetadata{existing},
	}, cand)
	require.NoError(t, err)
	require.Len(t, cmds, 2)

	rm := cmds[0].(*blackboard.RemoveRecordCommand)
	assert.Equal(t, existing.UID, rm.UID)

	add := cmds[1].(*blackboard.AddRecordCommand)
	assert.Equal(t, cand.UID, add.Record.UID)
	assert.True(t, add.InsertIfNew)
	assert.True(t, add.Override)
}

func TestDefault_ClearAllWithZeroLimitRejects(t *testing.T) {
	c := newDefault(t, map[string]string{OptionResolution: "ClearAll"})

	cmds, err := c.ResolvePushIssue(context.Background(), &blackboard.MaxRecordIssue{MaxRecordAllow: 0}, candidateAt(now))
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.IsType(t, &blackboard.RejectCommand{}, cmds[0])
}

func TestDefault_KeepNewest(t *testing.T) {
	c := newDefault(t, nil)

	t.Run("candidate sorted out is rejected", func(t *testing.T) {
		issue := &blackboard.MaxRecordIssue{
			MaxRecordAllow:  1,
			ConflictRecords: []blackboard.RecordMetadata{conflict(blackboard.RecordStatusReady, future)},
			Preference:      blackboard.ResolutionKeepNewest,
		}
		cmds, err := c.ResolvePushIssue(context.Background(), issue, candidateAt(past))
		require.NoError(t, err)
		require.Len(t, cmds, 1)
		reject := cmds[0].(*blackboard.RejectCommand)
		assert.Same(t, issue, reject.Issue)
	})

	t.Run("oldest record is removed", func(t *testing.T) {
		old := conflict(blackboard.RecordStatusReady, past)
		newer := conflict(blackboard.RecordStatusReady, future)
		cand := candidateAt(now)

		cmds, err := c.ResolvePushIssue(context.Background(), &blackboard.MaxRecordIssue{
			MaxRecordAllow:  2,
			ConflictRecords: []blackboard.RecordMetadata{old, newer},
			Preference:      blackboard.ResolutionKeepNewest,
		}, cand)
		require.NoError(t, err)
		require.Len(t, cmds, 2)
		assert.Equal(t, old.UID, cmds[0].(*blackboard.RemoveRecordCommand).UID)
		assert.Equal(t, cand.UID, cmds[1].(*blackboard.AddRecordCommand).Record.UID)
	})

	t.Run("three existing with limit two", func(t *testing.T) {
		t1 := conflict(blackboard.RecordStatusReady, past)
		t2 := conflict(blackboard.RecordStatusReady, past.Add(time.Minute))
		t3 := conflict(blackboard.RecordStatusReady, past.Add(2*time.Minute))
		cand := candidateAt(future)

		cmds, err := c.ResolvePushIssue(context.Background(), &blackboard.MaxRecordIssue{
			MaxRecordAllow:  2,
			ConflictRecords: []blackboard.RecordMetadata{t2, t1, t3},
			Preference:      blackboard.ResolutionKeepNewest,
		}, cand)
		require.NoError(t, err)
		require.Len(t, cmds, 3)

		removed := []uuid.UUID{
			cmds[0].(*blackboard.RemoveRecordCommand).UID,
			cmds[1].(*blackboard.RemoveRecordCommand).UID,
		}
		assert.ElementsMatch(t, []uuid.UUID{t1.UID, t2.UID}, removed)
		assert.IsType(t, &blackboard.AddRecordCommand{}, cmds[2])
	})
}

func TestDefault_KeepOldest(t *testing.T) {
	c := newDefault(t, map[string]string{OptionResolution: "KeepOldestUpdated", OptionRemoveResolution: "Decommission"})
	old := conflict(blackboard.RecordStatusReady, past)
	newer := conflict(blackboard.RecordStatusReady, future)

	t.Run("new candidate is sorted out", func(t *testing.T) {
		cmds, err := c.ResolvePushIssue(context.Background(), &blackboard.MaxRecordIssue{
			MaxRecordAllow:  2,
			ConflictRecords: []blackboard.RecordMetadata{old, newer},
		}, candidateAt(future.Add(time.Hour)))
		require.NoError(t, err)
		require.Len(t, cmds, 1)
		assert.IsType(t, &blackboard.RejectCommand{}, cmds[0])
	})

	t.Run("removals decommission", func(t *testing.T) {
		cand := candidateAt(now)
		cmds, err := c.ResolvePushIssue(context.Background(), &blackboard.MaxRecordIssue{
			MaxRecordAllow:  2,
			ConflictRecords: []blackboard.RecordMetadata{old, newer},
		}, cand)
		require.NoError(t, err)
		require.Len(t, cmds, 2)
		assert.Equal(t, newer.UID, cmds[0].(*blackboard.DecommissionRecordCommand).UID)
		assert.Equal(t, cand.UID, cmds[1].(*blackboard.AddRecordCommand).Record.UID)
	})
}

func TestDefault_ReusesPreparationSlot(t *testing.T) {
	c := newDefault(t, map[string]string{OptionResolution: "KeepNewest"})
	slot := conflict(blackboard.RecordStatusPreparation, past)
	slot.CreatorIdentity = "planner"
	cand := candidateAt(now)

	cmds, err := c.ResolvePushIssue(context.Background(), &blackboard.MaxRecordIssue{
		MaxRecordAllow:  1,
		ConflictRecords: []blackboard.RecordMetadata{slot},
	}, cand)
	require.NoError(t, err)
	require.Len(t, cmds, 1)

	add := cmds[0].(*blackboard.AddRecordCommand)
	assert.Equal(t, slot.UID, add.Record.UID)
	assert.Equal(t, past, add.Record.CreatedAt)
	assert.Equal(t, "planner", add.Record.CreatorIdentity)
	assert.Equal(t, "payload", add.Record.Payload)
	assert.Equal(t, blackboard.RecordStatusReady, add.Record.Status)
	assert.True(t, add.Override)
	assert.NotEqual(t, slot.UID, cand.UID, "candidate is not mutated")
}

func TestDefault_OtherIssues(t *testing.T) {
	c := newDefault(t, map[string]string{OptionResolution: "ClearAll"})
	cmds, err := c.ResolvePushIssue(context.Background(), &blackboard.ConflictIssue{}, candidateAt(now))
	require.NoError(t, err)
	assert.Nil(t, cmds)
}

func TestDefault_InvalidOptions(t *testing.T) {
	c := NewDefault(Deps{})
	err := c.Initialize(context.Background(), blackboard.BoardID{}, map[string]string{OptionResolution: "Sometimes"})
	assert.Error(t, err)
}

func TestDefault_PersistsOptions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStateStore()
	f := NewFactory("test-ns", store, nil)
	board := blackboard.BoardID{UID: uuid.New(), Name: "b", TemplateKey: "t"}

	h := f.NewHandler(board, blackboard.ControllerBinding{
		Kind:    blackboard.ControllerStorage,
		Name:    DefaultName,
		Options: map[string]string{OptionResolution: "KeepOldest"},
	})
	_, err := h.Controller(ctx)
	require.NoError(t, err)

	var saved DefaultOptions
	found, err := store.Load(ctx, blackboard.ControllerStateKey("test-ns", board.UID, DefaultName), &saved)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, blackboard.ResolutionKeepOldest, saved.Resolution)
	assert.Equal(t, blackboard.RemoveResolutionRemove, saved.RemoveResolution)
}

func TestBase_Defaults(t *testing.T) {
	ctx := context.Background()
	c := newDefault(t, nil)

	cmds, err := c.ProcessRequest(ctx, &Request{Name: "q"})
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.IsType(t, &blackboard.RejectCommand{}, cmds[0])

	cmds, err = c.ReactToEvents(ctx, blackboard.NewEventBook(nil))
	require.NoError(t, err)
	assert.Nil(t, cmds)

	cmds, err = c.ManagedSignal(ctx, &blackboard.SignalMessage{Signal: "tick"})
	require.NoError(t, err)
	assert.Nil(t, cmds)

	assert.Equal(t, "fallback", c.Option("missing", "fallback"))
}
