package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dyluth/democrite/internal/controller"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Title string `json:"title"`
	Pages int    `json:"pages"`
}

func TestBoard_RecordLimitScenario(t *testing.T) {
	tests := []struct {
		name       string
		resolution blackboard.ResolutionMode
		wantOK     bool
		wantB      bool
	}{
		{"reject keeps the first record", blackboard.ResolutionReject, false, false},
		{"clear all replaces the first record", blackboard.ResolutionClearAll, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &blackboard.Template{
				UniqueName:   "docs",
				Controllers:  []blackboard.ControllerBinding{storageBinding(tt.resolution)},
				LogicalTypes: []blackboard.LogicalTypeRule{maxRecord("doc", 1)},
			})
			ctx := context.Background()

			a := blackboard.NewDataRecord(uuid.New(), "doc", "A", "first")
			ok, err := f.board.Push(ctx, a, blackboard.PushTypePush)
			require.NoError(t, err)
			require.True(t, ok)

			b := blackboard.NewDataRecord(uuid.New(), "doc", "B", "second")
			ok, err = f.board.Push(ctx, b, blackboard.PushTypePush)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)

			want := []uuid.UUID{a.UID}
			if tt.wantB {
				want = []uuid.UUID{b.UID}
			}
			assert.Equal(t, want, uidsOf(f.metadata(t)))
		})
	}
}

func TestBoard_ZeroRecordLimit(t *testing.T) {
	f := newFixture(t, &blackboard.Template{
		UniqueName:   "docs",
		Controllers:  []blackboard.ControllerBinding{storageBinding(blackboard.ResolutionClearAll)},
		LogicalTypes: []blackboard.LogicalTypeRule{maxRecord("doc", 0)},
	})
	ctx := context.Background()

	ok, err := f.board.Push(ctx, blackboard.NewDataRecord(uuid.New(), "doc", "A", "first"), blackboard.PushTypePush)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.metadata(t))

	ok, err = f.board.Prepare(ctx, uuid.New(), "doc", "pending")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.metadata(t))
}

// echoResolver answers every issue by retrying the same add.
type echoResolver struct {
	controller.Base
	calls int
}

func (r *echoResolver) ResolvePushIssue(_ context.Context, _ blackboard.Issue, candidate *blackboard.DataRecord) ([]blackboard.Command, error) {
	r.calls++
	return []blackboard.Command{&blackboard.AddRecordCommand{Record: candidate, InsertIfNew: true, Override: true}}, nil
}

func TestBoard_RemediationLoopHitsDepthGuard(t *testing.T) {
	r := &echoResolver{}
	f := newFixture(t, &blackboard.Template{
		UniqueName:   "docs",
		Controllers:  []blackboard.ControllerBinding{{Kind: blackboard.ControllerStorage, Name: "echo"}},
		LogicalTypes: []blackboard.LogicalTypeRule{maxRecord("doc", 0)},
	}, withController("echo", r), withSettings(Settings{SaveDelay: time.Hour, ForceSaveAfter: 10, MaxCascadeDepth: 3}))

	ok, err := f.board.Push(context.Background(), blackboard.NewDataRecord(uuid.New(), "doc", "", "a"), blackboard.PushTypePush)
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, blackboard.ErrCascadeDepthExceeded)
	assert.ErrorIs(t, err, blackboard.ErrCommandExecution)
	assert.Equal(t, 4, r.calls)
	assert.Empty(t, f.metadata(t))
}

func TestBoard_PushTypes(t *testing.T) {
	f := newFixture(t, &blackboard.Template{
		UniqueName:  "docs",
		Controllers: []blackboard.ControllerBinding{storageBinding(blackboard.ResolutionReject)},
	})
	ctx := context.Background()
	uid := uuid.New()

	ok, err := f.board.Push(ctx, blackboard.NewDataRecord(uid, "doc", "", "v1"), blackboard.PushTypeUpdateOnly)
	require.NoError(t, err)
	assert.False(t, ok, "UpdateOnly on a missing uid")
	assert.Empty(t, f.metadata(t))

	ok, err = f.board.Push(ctx, blackboard.NewDataRecord(uid, "doc", "", "v1"), blackboard.PushTypeOnlyNew)
	require.NoError(t, err)
	assert.True(t, ok, "OnlyNew on a missing uid")

	ok, err = f.board.Push(ctx, blackboard.NewDataRecord(uid, "doc", "", "v2"), blackboard.PushTypeOnlyNew)
	require.NoError(t, err)
	assert.False(t, ok, "OnlyNew on an existing uid")

	got, err := GetStoredData[string](ctx, f.board, uid)
	require.NoError(t, err)
	assert.Equal(t, "v1", *got.Payload)

	ok, err = f.board.Push(ctx, blackboard.NewDataRecord(uid, "doc", "", "v3"), blackboard.PushTypeUpdateOnly)
	require.NoError(t, err)
	assert.True(t, ok, "UpdateOnly on an existing uid")

	ok, err = f.board.Push(ctx, blackboard.NewDataRecord(uid, "doc", "", "v4"), blackboard.PushTypePush)
	require.NoError(t, err)
	assert.True(t, ok, "Push always overrides")

	got, err = GetStoredData[string](ctx, f.board, uid)
	require.NoError(t, err)
	assert.Equal(t, "v4", *got.Payload)
	assert.Len(t, f.metadata(t), 1)
}

func TestBoard_PushKeepsCreationTime(t *testing.T) {
	f := newFixture(t, &blackboard.Template{UniqueName: "docs"})
	ctx := context.Background()
	uid := uuid.New()

	_, err := f.board.Push(ctx, blackboard.NewDataRecord(uid, "doc", "", 1), blackboard.PushTypePush)
	require.NoError(t, err)
	first := f.metadata(t)[0]

	_, err = f.board.Push(ctx, blackboard.NewDataRecord(uid, "doc", "", 2), blackboard.PushTypePush)
	require.NoError(t, err)
	second := f.metadata(t)[0]

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestBoard_IssueWithoutStorageController(t *testing.T) {
	f := newFixture(t, &blackboard.Template{
		UniqueName:   "docs",
		LogicalTypes: []blackboard.LogicalTypeRule{maxRecord("doc", 1)},
	})
	ctx := context.Background()

	_, err := f.board.Push(ctx, blackboard.NewDataRecord(uuid.New(), "doc", "", "a"), blackboard.PushTypePush)
	require.NoError(t, err)

	ok, err := f.board.Push(ctx, blackboard.NewDataRecord(uuid.New(), "doc", "", "b"), blackboard.PushTypePush)
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, blackboard.ErrPushValidation)
	assert.ErrorIs(t, err, blackboard.ErrCommandExecution)

	var pv *blackboard.PushValidationError
	require.True(t, errors.As(err, &pv))
	assert.Equal(t, "MaxRecord", pv.Issue.Kind())
	assert.Len(t, f.metadata(t), 1)
}

func TestBoard_KeepResolutions(t *testing.T) {
	tests := []struct {
		name       string
		resolution blackboard.ResolutionMode
		wantOK     bool
		wantKept   func(a, b, c uuid.UUID) []uuid.UUID
	}{
		{"keep newest drops the oldest", blackboard.ResolutionKeepNewest, true,
			func(a, b, c uuid.UUID) []uuid.UUID { return []uuid.UUID{b, c} }},
		{"keep oldest sorts the candidate out", blackboard.ResolutionKeepOldest, false,
			func(a, b, c uuid.UUID) []uuid.UUID { return []uuid.UUID{a, b} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &blackboard.Template{
				UniqueName:   "docs",
				Controllers:  []blackboard.ControllerBinding{storageBinding(tt.resolution)},
				LogicalTypes: []blackboard.LogicalTypeRule{maxRecord("doc", 2)},
			})
			ctx := context.Background()

			var uids []uuid.UUID
			var last bool
			for i := 0; i < 3; i++ {
				uid := uuid.New()
				uids = append(uids, uid)
				ok, err := f.board.Push(ctx, blackboard.NewDataRecord(uid, "doc", "", i), blackboard.PushTypePush)
				require.NoError(t, err)
				last = ok
			}

			assert.Equal(t, tt.wantOK, last)
			assert.Equal(t, tt.wantKept(uids[0], uids[1], uids[2]), uidsOf(f.metadata(t)))
		})
	}
}

func TestBoard_PreparationSlotReuse(t *testing.T) {
	f := newFixture(t, &blackboard.Template{
		UniqueName:   "docs",
		Controllers:  []blackboard.ControllerBinding{storageBinding(blackboard.ResolutionKeepNewest)},
		LogicalTypes: []blackboard.LogicalTypeRule{maxRecord("doc", 1)},
	})
	ctx := context.Background()
	slot := uuid.New()

	ok, err := f.board.Prepare(ctx, slot, "doc", "pending")
	require.NoError(t, err)
	require.True(t, ok)

	prepared := f.metadata(t)
	require.Len(t, prepared, 1)
	assert.Equal(t, blackboard.RecordStatusPreparation, prepared[0].Status)

	ok, err = f.board.Push(ctx, blackboard.NewDataRecord(uuid.New(), "doc", "final", doc{Title: "Report", Pages: 3}), blackboard.PushTypePush)
	require.NoError(t, err)
	require.True(t, ok)

	metas := f.metadata(t)
	require.Len(t, metas, 1)
	assert.Equal(t, slot, metas[0].UID, "payload lands in the prepared slot")
	assert.Equal(t, blackboard.RecordStatusReady, metas[0].Status)
	assert.Equal(t, prepared[0].CreatedAt, metas[0].CreatedAt)

	got, err := GetStoredData[doc](ctx, f.board, slot)
	require.NoError(t, err)
	assert.Equal(t, doc{Title: "Report", Pages: 3}, *got.Payload)
}

func TestBoard_PrepareTwiceIsRejected(t *testing.T) {
	f := newFixture(t, &blackboard.Template{
		UniqueName:  "docs",
		Controllers: []blackboard.ControllerBinding{storageBinding(blackboard.ResolutionReject)},
	})
	ctx := context.Background()
	slot := uuid.New()

	ok, err := f.board.Prepare(ctx, slot, "doc", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.board.Prepare(ctx, slot, "doc", "")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := GetStoredData[string](ctx, f.board, slot)
	require.NoError(t, err)
	assert.Nil(t, got.Payload, "prepared slots have no payload")
}

func TestBoard_RejectIsTerminal(t *testing.T) {
	f := newFixture(t, &blackboard.Template{UniqueName: "docs"})
	ctx := context.Background()

	a := blackboard.NewDataRecord(uuid.New(), "doc", "", "a")
	_, err := f.board.Push(ctx, a, blackboard.PushTypePush)
	require.NoError(t, err)
	before := f.metadata(t)

	ok, err := f.board.Execute(ctx,
		&blackboard.RejectCommand{Issue: &blackboard.NotSupportedIssue{Reason: "test"}},
		&blackboard.RemoveRecordCommand{UID: a.UID},
	)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, f.metadata(t), "nothing after the reject runs")
}

func TestBoard_FailureKeepsAppliedCommands(t *testing.T) {
	f := newFixture(t, &blackboard.Template{UniqueName: "docs"})
	ctx := context.Background()

	a := blackboard.NewDataRecord(uuid.New(), "doc", "", "a")
	ok, err := f.board.Execute(ctx,
		blackboard.NewAddCommand(a, blackboard.PushTypePush),
		&blackboard.ChangeLifeStatusCommand{To: "Paused"},
		blackboard.NewAddCommand(blackboard.NewDataRecord(uuid.New(), "doc", "", "b"), blackboard.PushTypePush),
	)
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, blackboard.ErrUnknownCommand)

	var execErr *blackboard.CommandExecutionError
	require.True(t, errors.As(err, &execErr))
	require.Len(t, execErr.Applied, 1)
	assert.Equal(t, []uuid.UUID{a.UID}, uidsOf(f.metadata(t)), "applied commands are not rolled back")
}

func TestBoard_NonDirectRecord(t *testing.T) {
	f := newFixture(t, &blackboard.Template{UniqueName: "docs"})

	r := blackboard.NewDataRecord(uuid.New(), "doc", "", "a")
	r.ContainerType = blackboard.ContainerProjection

	_, err := f.board.Push(context.Background(), r, blackboard.PushTypePush)
	assert.ErrorIs(t, err, blackboard.ErrNonDirectRecord)
}

func TestBoard_AssignsMissingUID(t *testing.T) {
	f := newFixture(t, &blackboard.Template{UniqueName: "docs"})

	ok, err := f.board.Push(context.Background(), blackboard.NewDataRecord(uuid.Nil, "doc", "", "a"), blackboard.PushTypePush)
	require.NoError(t, err)
	require.True(t, ok)

	metas := f.metadata(t)
	require.Len(t, metas, 1)
	assert.NotEqual(t, uuid.Nil, metas[0].UID)
}

func TestBoard_ChangeStatus(t *testing.T) {
	r := &reactor{}
	f := newFixture(t, &blackboard.Template{
		UniqueName:  "docs",
		Controllers: []blackboard.ControllerBinding{eventBinding("reactor")},
	}, withController("reactor", r))
	ctx := context.Background()

	a := blackboard.NewDataRecord(uuid.New(), "doc", "", "a")
	_, err := f.board.Push(ctx, a, blackboard.PushTypePush)
	require.NoError(t, err)

	ok, err := f.board.ChangeRecordStatus(ctx, a.UID, blackboard.RecordStatusError)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.board.ChangeRecordStatus(ctx, a.UID, blackboard.RecordStatusError)
	require.NoError(t, err)
	assert.False(t, ok, "same status is a no-op")

	ok, err = f.board.ChangeRecordStatus(ctx, uuid.New(), blackboard.RecordStatusError)
	require.NoError(t, err)
	assert.False(t, ok, "unknown uid")

	ok, err = f.board.Execute(ctx, &blackboard.DecommissionRecordCommand{UID: a.UID})
	require.NoError(t, err)
	assert.True(t, ok)

	metas := f.metadata(t)
	require.Len(t, metas, 1)
	assert.Equal(t, blackboard.RecordStatusDecommissioned, metas[0].Status)

	repo, err := f.repos.GetRepository(ctx, f.board.UID(), blackboard.StorageConfig{})
	require.NoError(t, err)
	stored, err := repo.GetRecord(ctx, a.UID)
	require.NoError(t, err)
	assert.Equal(t, blackboard.RecordStatusDecommissioned, stored.Status, "repository copy follows the registry")

	require.Equal(t, 3, r.Calls())
	changes := r.books[2].StorageEvents(nil)
	require.Len(t, changes, 1)
	assert.Equal(t, blackboard.StorageChangeStatus, changes[0].Change)
	assert.Equal(t, a.UID, changes[0].UID)
}

func TestBoard_DecommissionedRecordsLeaveTheLimit(t *testing.T) {
	f := newFixture(t, &blackboard.Template{
		UniqueName:   "docs",
		Controllers:  []blackboard.ControllerBinding{storageBinding(blackboard.ResolutionReject)},
		LogicalTypes: []blackboard.LogicalTypeRule{maxRecord("doc", 1)},
	})
	ctx := context.Background()

	a := blackboard.NewDataRecord(uuid.New(), "doc", "", "a")
	_, err := f.board.Push(ctx, a, blackboard.PushTypePush)
	require.NoError(t, err)

	_, err = f.board.Execute(ctx, &blackboard.DecommissionRecordCommand{UID: a.UID})
	require.NoError(t, err)

	ok, err := f.board.Push(ctx, blackboard.NewDataRecord(uuid.New(), "doc", "", "b"), blackboard.PushTypePush)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, f.metadata(t), 2)
}

func TestBoard_ChangeMetadataAndDelete(t *testing.T) {
	f := newFixture(t, &blackboard.Template{UniqueName: "docs"})
	ctx := context.Background()

	a := blackboard.NewDataRecord(uuid.New(), "doc", "old", "a")
	b := blackboard.NewDataRecord(uuid.New(), "doc", "b", "b")
	for _, r := range []*blackboard.DataRecord{a, b} {
		_, err := f.board.Push(ctx, r, blackboard.PushTypePush)
		require.NoError(t, err)
	}

	ok, err := f.board.ChangeMetadata(ctx, a.UID, "new")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.board.ChangeMetadata(ctx, a.UID, "new")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := GetStoredData[string](ctx, f.board, a.UID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.DisplayName)

	ok, err = f.board.DeleteData(ctx, a.UID, b.UID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, f.metadata(t))

	ok, err = f.board.DeleteData(ctx, a.UID)
	require.NoError(t, err)
	assert.False(t, ok, "already removed")
}

func TestBoard_Triggers(t *testing.T) {
	f := newFixture(t, &blackboard.Template{UniqueName: "docs"})
	ctx := context.Background()

	ok, err := f.board.Execute(ctx,
		&blackboard.TriggerSequenceCommand{SequenceID: "summarize", Input: map[string]int{"pages": 3}},
		&blackboard.TriggerSignalCommand{Signal: "summarized"},
	)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.exec.Close(ctx))

	seqs := f.launcher.Sequences()
	require.Len(t, seqs, 1)
	assert.Equal(t, "summarize", seqs[0].SequenceID)
	assert.Equal(t, f.board.UID(), seqs[0].BoardUID)
	assert.JSONEq(t, `{"pages":3}`, string(seqs[0].Input))

	signals := f.launcher.Signals()
	require.Len(t, signals, 1)
	assert.Equal(t, "summarized", signals[0].Signal)
}

func TestBoard_Cascade(t *testing.T) {
	t.Run("no follow-up stops after one reaction", func(t *testing.T) {
		r := &reactor{}
		f := newFixture(t, &blackboard.Template{
			UniqueName:  "docs",
			Controllers: []blackboard.ControllerBinding{eventBinding("reactor")},
		}, withController("reactor", r))

		a := blackboard.NewDataRecord(uuid.New(), "doc", "", "a")
		ok, err := f.board.Push(context.Background(), a, blackboard.PushTypePush)
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Equal(t, 1, r.Calls())
		added := r.books[0].StorageEvents(func(e *blackboard.StorageEvent) bool { return e.Change == blackboard.StorageChangeAdd })
		require.Len(t, added, 1)
		assert.Equal(t, a.UID, added[0].UID)
	})

	t.Run("follow-up commands run as a nested batch", func(t *testing.T) {
		derived := uuid.New()
		r := &reactor{react: func(call int, _ *blackboard.EventBook) []blackboard.Command {
			if call > 1 {
				return nil
			}
			return []blackboard.Command{blackboard.NewAddCommand(blackboard.NewDataRecord(derived, "summary", "", "short"), blackboard.PushTypePush)}
		}}
		f := newFixture(t, &blackboard.Template{
			UniqueName:  "docs",
			Controllers: []blackboard.ControllerBinding{eventBinding("reactor")},
		}, withController("reactor", r))

		ok, err := f.board.Push(context.Background(), blackboard.NewDataRecord(uuid.New(), "doc", "", "a"), blackboard.PushTypePush)
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Equal(t, 2, r.Calls())
		assert.Contains(t, uidsOf(f.metadata(t)), derived)
	})

	t.Run("endless cascades hit the depth guard", func(t *testing.T) {
		r := &reactor{react: func(int, *blackboard.EventBook) []blackboard.Command {
			return []blackboard.Command{blackboard.NewAddCommand(blackboard.NewDataRecord(uuid.New(), "echo", "", 1), blackboard.PushTypePush)}
		}}
		f := newFixture(t, &blackboard.Template{
			UniqueName:  "docs",
			Controllers: []blackboard.ControllerBinding{eventBinding("reactor")},
		}, withController("reactor", r), withSettings(Settings{SaveDelay: 0, ForceSaveAfter: 10, MaxCascadeDepth: 3}))

		ok, err := f.board.Push(context.Background(), blackboard.NewDataRecord(uuid.New(), "doc", "", "a"), blackboard.PushTypePush)
		assert.False(t, ok)
		assert.ErrorIs(t, err, blackboard.ErrCascadeDepthExceeded)
		assert.Equal(t, 4, r.Calls())
	})
}

func TestBoard_LifeStatus(t *testing.T) {
	keep := true
	f := newFixture(t, &blackboard.Template{
		UniqueName: "docs",
		LogicalTypes: []blackboard.LogicalTypeRule{
			{Pattern: "result", RemainOnSealed: &keep},
		},
	})
	ctx := context.Background()

	seed := blackboard.NewDataRecord(uuid.New(), "result", "seed", "s")
	ok, err := f.board.Initialize(ctx, seed)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, blackboard.LifeStatusRunning, f.board.LifeStatus())
	assert.Equal(t, []uuid.UUID{seed.UID}, uidsOf(f.metadata(t)))

	ok, err = f.board.Initialize(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "only a new board can be initialized")

	scratch := blackboard.NewDataRecord(uuid.New(), "scratch", "", "tmp")
	_, err = f.board.Push(ctx, scratch, blackboard.PushTypePush)
	require.NoError(t, err)
	_, err = f.board.Prepare(ctx, uuid.New(), "result", "pending")
	require.NoError(t, err)

	ok, err = f.board.Seal(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, blackboard.LifeStatusSealed, f.board.LifeStatus())
	assert.Equal(t, []uuid.UUID{seed.UID}, uidsOf(f.metadata(t)), "only Ready records of kept types remain")

	_, err = f.board.Push(ctx, blackboard.NewDataRecord(uuid.New(), "result", "", "late"), blackboard.PushTypePush)
	assert.ErrorIs(t, err, blackboard.ErrBoardSealed)

	ok, err = f.board.Seal(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.board.Close(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, blackboard.LifeStatusDone, f.board.LifeStatus())

	ok, err = f.board.Close(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

type sealer struct {
	controller.Base
	kept, removed int
}

func (s *sealer) OnSealed(_ context.Context, keep, remove []blackboard.RecordMetadata) ([]blackboard.Command, error) {
	s.kept, s.removed = len(keep), len(remove)
	// Decommission instead of removing.
	var cmds []blackboard.Command
	for _, m := range remove {
		cmds = append(cmds, &blackboard.DecommissionRecordCommand{UID: m.UID})
	}
	return cmds, nil
}

func TestBoard_StateControllerDecidesSeal(t *testing.T) {
	s := &sealer{}
	f := newFixture(t, &blackboard.Template{
		UniqueName:  "docs",
		Controllers: []blackboard.ControllerBinding{{Kind: blackboard.ControllerState, Name: "sealer"}},
	}, withController("sealer", s))
	ctx := context.Background()

	_, err := f.board.Push(ctx, blackboard.NewDataRecord(uuid.New(), "doc", "", "a"), blackboard.PushTypePush)
	require.NoError(t, err)

	ok, err := f.board.Seal(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, s.kept)
	assert.Equal(t, 1, s.removed)

	metas := f.metadata(t)
	require.Len(t, metas, 1)
	assert.Equal(t, blackboard.RecordStatusDecommissioned, metas[0].Status)
}

func TestBoard_ProcessRequest(t *testing.T) {
	t.Run("no event controller", func(t *testing.T) {
		f := newFixture(t, &blackboard.Template{UniqueName: "docs"})
		ok, err := f.board.ProcessRequest(context.Background(), &controller.Request{Name: "summarize"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("default handling rejects", func(t *testing.T) {
		r := &reactor{}
		f := newFixture(t, &blackboard.Template{
			UniqueName:  "docs",
			Controllers: []blackboard.ControllerBinding{eventBinding("reactor")},
		}, withController("reactor", r))
		ok, err := f.board.ProcessRequest(context.Background(), &controller.Request{Name: "summarize"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("commands from the controller run", func(t *testing.T) {
		uid := uuid.New()
		r := &reactor{request: func(req *controller.Request) []blackboard.Command {
			return []blackboard.Command{blackboard.NewAddCommand(blackboard.NewDataRecord(uid, "answer", req.Name, req.Payload), blackboard.PushTypePush)}
		}}
		f := newFixture(t, &blackboard.Template{
			UniqueName:  "docs",
			Controllers: []blackboard.ControllerBinding{eventBinding("reactor")},
		}, withController("reactor", r))

		ok, err := f.board.ProcessRequest(context.Background(), &controller.Request{Name: "summarize", Payload: 42})
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := GetStoredData[int](context.Background(), f.board, uid)
		require.NoError(t, err)
		assert.Equal(t, 42, *got.Payload)
	})

	t.Run("invalid request", func(t *testing.T) {
		f := newFixture(t, &blackboard.Template{UniqueName: "docs"})
		_, err := f.board.ProcessRequest(context.Background(), &controller.Request{})
		assert.Error(t, err)
	})
}

func TestBoard_ManagedSignal(t *testing.T) {
	uid := uuid.New()
	r := &reactor{signal: func(msg *blackboard.SignalMessage) []blackboard.Command {
		return []blackboard.Command{blackboard.NewAddCommand(blackboard.NewDataRecord(uid, "signal", msg.Signal, nil), blackboard.PushTypePush)}
	}}
	f := newFixture(t, &blackboard.Template{
		UniqueName:  "docs",
		Controllers: []blackboard.ControllerBinding{eventBinding("reactor")},
	}, withController("reactor", r))
	ctx := context.Background()

	require.NoError(t, f.board.ManagedSignal(ctx, &blackboard.SignalMessage{Signal: "wake"}))
	assert.Empty(t, f.metadata(t), "signals are dropped before initialization")

	_, err := f.board.Initialize(ctx)
	require.NoError(t, err)
	require.NoError(t, f.board.ManagedSignal(ctx, &blackboard.SignalMessage{Signal: "wake"}))
	assert.Equal(t, []uuid.UUID{uid}, uidsOf(f.metadata(t)))
}

func TestBoard_NotBuilt(t *testing.T) {
	f := newFixture(t, &blackboard.Template{UniqueName: "docs"})
	ctx := context.Background()

	fresh, err := f.host.Get(ctx, uuid.New())
	require.NoError(t, err)

	_, err = fresh.Push(ctx, blackboard.NewDataRecord(uuid.New(), "doc", "", 1), blackboard.PushTypePush)
	assert.ErrorIs(t, err, blackboard.ErrBoardNotBuilt)

	_, err = fresh.GetAllStoredMetaData(ctx, MetadataFilter{})
	assert.ErrorIs(t, err, blackboard.ErrBoardNotBuilt)

	err = fresh.BuildFromTemplate(ctx, uuid.New(), blackboard.BoardID{Name: "x", TemplateKey: "missing"})
	assert.ErrorIs(t, err, blackboard.ErrMissingDefinition)
}
