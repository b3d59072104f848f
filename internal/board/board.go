// Package board implements the blackboard entity: the owner of one board's record
// registry, controllers and logical type handlers, and the command pipeline every write
// goes through.
//
// A Board behaves like an actor. Public operations are serialized by a turn lock, so two
// command batches never run concurrently on the same board while different boards run in
// parallel. A second lock guards the registry and repository writes of each storage
// command and the state snapshots taken by the debounced saver.
package board

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dyluth/democrite/internal/controller"
	"github.com/dyluth/democrite/internal/execution"
	"github.com/dyluth/democrite/internal/rules"
	"github.com/dyluth/democrite/internal/storage"
	"github.com/dyluth/democrite/internal/templates"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// EventPublisher publishes committed events. *blackboard.Client implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, env *blackboard.EventEnvelope) error
}

// Settings tune persistence and cascades.
type Settings struct {
	SaveDelay       time.Duration
	ForceSaveAfter  int
	MaxCascadeDepth int
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		SaveDelay:       2 * time.Second,
		ForceSaveAfter:  10,
		MaxCascadeDepth: 32,
	}
}

// Deps are the collaborators shared by every board of a host.
type Deps struct {
	Namespace    string
	Repositories storage.RepositoryFactory
	State        storage.StateStore
	Templates    templates.Provider
	Controllers  *controller.Factory
	Rules        *rules.Provider
	// Execution fires sequences and signals. Trigger commands fail without it.
	Execution *execution.Handler
	// Events is optional.
	Events   EventPublisher
	Clock    blackboard.Clock
	Settings Settings
}

// Validate checks mandatory collaborators are set and fills defaults.
func (d *Deps) Validate() error {
	if d.Repositories == nil {
		return fmt.Errorf("repository factory is required")
	}
	if d.State == nil {
		return fmt.Errorf("state store is required")
	}
	if d.Templates == nil {
		return fmt.Errorf("template provider is required")
	}
	if d.Controllers == nil {
		return fmt.Errorf("controller factory is required")
	}
	if d.Rules == nil {
		d.Rules = rules.NewProvider()
	}
	if d.Clock == nil {
		d.Clock = blackboard.SystemClock{}
	}
	defaults := DefaultSettings()
	if d.Settings.SaveDelay < 0 {
		return fmt.Errorf("save delay cannot be negative")
	}
	if d.Settings.ForceSaveAfter <= 0 {
		d.Settings.ForceSaveAfter = defaults.ForceSaveAfter
	}
	if d.Settings.MaxCascadeDepth <= 0 {
		d.Settings.MaxCascadeDepth = defaults.MaxCascadeDepth
	}
	return nil
}

// Board is one activated blackboard.
type Board struct {
	uid  uuid.UUID
	deps Deps

	turn sync.Mutex
	meta sync.Mutex

	state       *State
	controllers map[blackboard.ControllerKind]*controller.Handler
	handlers    handlerSet
	saver       *saver
	sealing     bool
}

// New returns an unloaded board. Hosts call Activate before using it.
func New(uid uuid.UUID, deps Deps) *Board {
	b := &Board{
		uid:   uid,
		deps:  deps,
		state: newState(),
	}
	b.saver = newSaver(deps.Settings.SaveDelay, deps.Settings.ForceSaveAfter, b.saveState)
	return b
}

// UID returns the board uid.
func (b *Board) UID() uuid.UUID {
	return b.uid
}

// Activate loads persisted state and rebuilds in-memory caches of a built board.
func (b *Board) Activate(ctx context.Context) error {
	b.turn.Lock()
	defer b.turn.Unlock()

	found, err := b.load(ctx)
	if err != nil {
		return err
	}
	if found && b.state.IsBuild {
		return b.ensureCaches()
	}
	return nil
}

// Deactivate flushes pending state and stops the save timer.
func (b *Board) Deactivate(ctx context.Context) error {
	b.turn.Lock()
	defer b.turn.Unlock()

	err := b.saver.Flush(ctx)
	b.saver.Stop()
	return err
}

// Flush saves pending state now.
func (b *Board) Flush(ctx context.Context) error {
	return b.saver.Flush(ctx)
}

// BuildFromTemplate copies the template into the board the first time it is called and
// persists it. Later calls leave the state untouched but rebuild missing caches.
func (b *Board) BuildFromTemplate(ctx context.Context, templateUID uuid.UUID, id blackboard.BoardID) error {
	b.turn.Lock()
	defer b.turn.Unlock()

	if !b.state.IsBuild {
		tmpl, err := b.deps.Templates.GetByUID(ctx, templateUID)
		if err != nil {
			return fmt.Errorf("failed to build board %s: %w", id, err)
		}
		if id.UID == uuid.Nil {
			id.UID = b.uid
		}

		b.meta.Lock()
		b.state.BoardID = id
		b.state.Template = tmpl.Clone()
		b.state.IsBuild = true
		b.meta.Unlock()

		b.saver.markDirty()
		if err := b.saver.Flush(ctx); err != nil {
			return err
		}
		log.Printf("[Board] Built board %s from template %s", id, tmpl.UniqueName)
	}
	return b.ensureCaches()
}

// ensureCaches rebuilds controller handlers and logical type handlers when empty.
func (b *Board) ensureCaches() error {
	tmpl := b.state.Template
	if tmpl == nil {
		return blackboard.ErrBoardNotBuilt
	}

	if len(b.controllers) == 0 {
		b.controllers = make(map[blackboard.ControllerKind]*controller.Handler)
		byKey := make(map[string]*controller.Handler)
		for _, kind := range []blackboard.ControllerKind{blackboard.ControllerStorage, blackboard.ControllerEvent, blackboard.ControllerState} {
			binding, ok := tmpl.Binding(kind)
			if !ok {
				continue
			}
			key := controller.BindingKey(binding)
			h, ok := byKey[key]
			if !ok {
				h = b.deps.Controllers.NewHandler(b.state.BoardID, binding)
				byKey[key] = h
			}
			b.controllers[kind] = h
		}
	}

	return b.handlers.Sync(tmpl, b.uid, b.deps.Repositories, b.deps.Rules)
}

// GetIdentity returns the board identity.
func (b *Board) GetIdentity() blackboard.BoardID {
	b.meta.Lock()
	defer b.meta.Unlock()
	return b.state.BoardID
}

// LifeStatus returns the board life status.
func (b *Board) LifeStatus() blackboard.LifeStatus {
	b.meta.Lock()
	defer b.meta.Unlock()
	return b.state.LifeStatus
}

// IsBuild reports whether the board has been built from a template.
func (b *Board) IsBuild() bool {
	b.meta.Lock()
	defer b.meta.Unlock()
	return b.state.IsBuild
}

// Template returns a copy of the board's frozen template.
func (b *Board) Template() *blackboard.Template {
	b.meta.Lock()
	defer b.meta.Unlock()
	if b.state.Template == nil {
		return nil
	}
	return b.state.Template.Clone()
}

// Push stores a record with the insert/override semantics of pushType.
func (b *Board) Push(ctx context.Context, record *blackboard.DataRecord, pushType blackboard.PushType) (bool, error) {
	if pushType == "" {
		pushType = blackboard.PushTypePush
	}
	if err := pushType.Validate(); err != nil {
		return false, err
	}
	if record == nil {
		return false, fmt.Errorf("record cannot be nil")
	}
	return b.Execute(ctx, blackboard.NewAddCommand(record, pushType))
}

// Prepare reserves uid in Preparation status before the payload exists.
func (b *Board) Prepare(ctx context.Context, uid uuid.UUID, logicalType, displayName string) (bool, error) {
	if logicalType == "" {
		return false, fmt.Errorf("logical type cannot be empty")
	}
	return b.Execute(ctx, &blackboard.PrepareSlotCommand{UID: uid, LogicalType: logicalType, DisplayName: displayName})
}

// DeleteData removes records in one batch.
func (b *Board) DeleteData(ctx context.Context, uids ...uuid.UUID) (bool, error) {
	if len(uids) == 0 {
		return false, nil
	}
	cmds := make([]blackboard.Command, 0, len(uids))
	for _, uid := range uids {
		cmds = append(cmds, &blackboard.RemoveRecordCommand{UID: uid})
	}
	return b.Execute(ctx, cmds...)
}

// ChangeRecordStatus moves a record to status.
func (b *Board) ChangeRecordStatus(ctx context.Context, uid uuid.UUID, status blackboard.RecordStatus) (bool, error) {
	if err := status.Validate(); err != nil {
		return false, err
	}
	return b.Execute(ctx, &blackboard.ChangeStatusCommand{UID: uid, Status: status})
}

// ChangeMetadata renames a record.
func (b *Board) ChangeMetadata(ctx context.Context, uid uuid.UUID, displayName string) (bool, error) {
	return b.Execute(ctx, &blackboard.ChangeMetadataCommand{UID: uid, DisplayName: displayName})
}

// Initialize moves a board from None to Running, storing initData first.
func (b *Board) Initialize(ctx context.Context, initData ...*blackboard.DataRecord) (bool, error) {
	return b.Execute(ctx, &blackboard.ChangeLifeStatusCommand{
		From:     blackboard.LifeStatusNone,
		To:       blackboard.LifeStatusRunning,
		InitData: initData,
	})
}

// Seal stops writes and drops the records that must not remain on a sealed board.
func (b *Board) Seal(ctx context.Context) (bool, error) {
	return b.Execute(ctx, &blackboard.ChangeLifeStatusCommand{From: b.LifeStatus(), To: blackboard.LifeStatusSealed})
}

// Close seals the board if needed and marks it Done.
func (b *Board) Close(ctx context.Context) (bool, error) {
	return b.Execute(ctx, &blackboard.ChangeLifeStatusCommand{From: b.LifeStatus(), To: blackboard.LifeStatusDone})
}

// ProcessRequest hands a request to the event controller and runs the commands it
// returns. It returns false when no controller handles requests.
func (b *Board) ProcessRequest(ctx context.Context, req *controller.Request) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, err
	}

	b.turn.Lock()
	defer b.turn.Unlock()

	if err := b.checkBuilt(); err != nil {
		return false, err
	}
	rc, ok, err := controller.Get[controller.RequestController](ctx, b.controllers[blackboard.ControllerEvent])
	if err != nil {
		return false, err
	}
	if !ok {
		log.Printf("[Board] No request controller on board %s, rejecting request %s", b.state.BoardID, req.Name)
		return false, nil
	}

	cmds, err := rc.ProcessRequest(ctx, req)
	if err != nil {
		return false, fmt.Errorf("failed to process request %s: %w", req.Name, err)
	}
	if len(cmds) == 0 {
		return true, nil
	}
	return b.run(ctx, cmds)
}

// ManagedSignal delivers a signal to the event controller. Signals reaching a board that
// is not running are dropped.
func (b *Board) ManagedSignal(ctx context.Context, msg *blackboard.SignalMessage) error {
	b.turn.Lock()
	defer b.turn.Unlock()

	if err := b.checkBuilt(); err != nil {
		return err
	}
	if status := b.LifeStatus(); status != blackboard.LifeStatusRunning {
		log.Printf("[Board] Dropped signal %s on board %s in status %s", msg.Signal, b.state.BoardID, status)
		return nil
	}

	sc, ok, err := controller.Get[controller.SignalController](ctx, b.controllers[blackboard.ControllerEvent])
	if err != nil || !ok {
		return err
	}
	cmds, err := sc.ManagedSignal(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to handle signal %s: %w", msg.Signal, err)
	}
	if len(cmds) == 0 {
		return nil
	}
	_, err = b.run(ctx, cmds)
	return err
}

// Execute runs commands as one batch, then lets the event controller react to the
// resulting events. It returns false when a command was rejected.
func (b *Board) Execute(ctx context.Context, cmds ...blackboard.Command) (bool, error) {
	b.turn.Lock()
	defer b.turn.Unlock()

	if err := b.checkBuilt(); err != nil {
		return false, err
	}
	return b.run(ctx, cmds)
}

func (b *Board) checkBuilt() error {
	if !b.IsBuild() {
		return blackboard.ErrBoardNotBuilt
	}
	return nil
}

func (b *Board) checkWritable() error {
	if b.sealing {
		return nil
	}
	if status := b.LifeStatus(); !status.AcceptsWrites() {
		return fmt.Errorf("%w: board %s is %s", blackboard.ErrBoardSealed, b.uid, status)
	}
	return nil
}

func (b *Board) publish(ctx context.Context, events []blackboard.Event) {
	if b.deps.Events == nil {
		return
	}
	now := b.deps.Clock.UtcNow()
	for _, e := range events {
		env, err := blackboard.NewEventEnvelope(b.uid, e, now)
		if err != nil {
			log.Printf("[Board] %v", err)
			continue
		}
		if err := b.deps.Events.PublishEvent(ctx, env); err != nil {
			log.Printf("[Board] Failed to publish %s event for board %s: %v", e.EventType(), b.uid, err)
		}
	}
}

func (b *Board) logEvent(event string, data map[string]interface{}) {
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["component"] = "board"
	data["event"] = event
	data["board_uid"] = b.uid.String()

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Board] Failed to marshal log event: %v", err)
		return
	}
	log.Println(string(jsonData))
}
