package facade

import (
	"context"

	"github.com/dyluth/democrite/internal/board"
	"github.com/dyluth/democrite/internal/controller"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// Proxy is a handle on one board that carries its identity. Calls go straight to the
// board, which serializes them.
type Proxy struct {
	board *board.Board
	id    blackboard.BoardID
}

// ID returns the board identity.
func (p *Proxy) ID() blackboard.BoardID { return p.id }

// UID returns the board uid.
func (p *Proxy) UID() uuid.UUID { return p.id.UID }

// Name returns the board name.
func (p *Proxy) Name() string { return p.id.Name }

// TemplateKey returns the unique name of the board's template.
func (p *Proxy) TemplateKey() string { return p.id.TemplateKey }

// Board returns the underlying board.
func (p *Proxy) Board() *board.Board { return p.board }

func (p *Proxy) Status() blackboard.LifeStatus {
	return p.board.LifeStatus()
}

func (p *Proxy) Initialize(ctx context.Context, initData ...*blackboard.DataRecord) (bool, error) {
	return p.board.Initialize(ctx, initData...)
}

func (p *Proxy) Seal(ctx context.Context) (bool, error) {
	return p.board.Seal(ctx)
}

func (p *Proxy) Close(ctx context.Context) (bool, error) {
	return p.board.Close(ctx)
}

func (p *Proxy) Push(ctx context.Context, record *blackboard.DataRecord, pushType blackboard.PushType) (bool, error) {
	return p.board.Push(ctx, record, pushType)
}

func (p *Proxy) Prepare(ctx context.Context, uid uuid.UUID, logicalType, displayName string) (bool, error) {
	return p.board.Prepare(ctx, uid, logicalType, displayName)
}

func (p *Proxy) DeleteData(ctx context.Context, uids ...uuid.UUID) (bool, error) {
	return p.board.DeleteData(ctx, uids...)
}

func (p *Proxy) ChangeRecordStatus(ctx context.Context, uid uuid.UUID, status blackboard.RecordStatus) (bool, error) {
	return p.board.ChangeRecordStatus(ctx, uid, status)
}

func (p *Proxy) ChangeMetadata(ctx context.Context, uid uuid.UUID, displayName string) (bool, error) {
	return p.board.ChangeMetadata(ctx, uid, displayName)
}

func (p *Proxy) Metadata(ctx context.Context, filter board.MetadataFilter) ([]blackboard.RecordMetadata, error) {
	return p.board.GetAllStoredMetaData(ctx, filter)
}

func (p *Proxy) Records(ctx context.Context, filter board.MetadataFilter) ([]*blackboard.DataRecord, error) {
	return p.board.GetAllStoredRecords(ctx, filter)
}

func (p *Proxy) ProcessRequest(ctx context.Context, req *controller.Request) (bool, error) {
	return p.board.ProcessRequest(ctx, req)
}

func (p *Proxy) Signal(ctx context.Context, msg *blackboard.SignalMessage) error {
	return p.board.ManagedSignal(ctx, msg)
}
