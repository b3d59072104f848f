package blackboard

import (
	"github.com/google/uuid"
)

// ActionType is the top level discriminator of a command.
type ActionType string

const (
	ActionStorage ActionType = "Storage"
	ActionTrigger ActionType = "Trigger"
	ActionReject  ActionType = "Reject"
	ActionLife    ActionType = "LifeStatus"
)

// Command is an immutable instruction executed once by a board. The set of variants is
// closed; boards dispatch on the concrete type.
type Command interface {
	Action() ActionType
	// Kind names the sub action ("Add", "Remove", "Sequence", ...).
	Kind() string
	isCommand()
}

// AddRecordCommand stores a record. InsertIfNew allows creating a missing uid and
// Override allows replacing an existing one.
type AddRecordCommand struct {
	Record      *DataRecord
	InsertIfNew bool
	Override    bool
}

// PrepareSlotCommand reserves a record uid in Preparation status before the payload exists.
type PrepareSlotCommand struct {
	UID         uuid.UUID
	LogicalType string
	DisplayName string
}

// RemoveRecordCommand deletes a record from its repository and the registry.
type RemoveRecordCommand struct {
	UID uuid.UUID
}

// DecommissionRecordCommand marks a record Decommissioned without deleting it.
type DecommissionRecordCommand struct {
	UID uuid.UUID
}

// ChangeStatusCommand moves a record to a new status.
type ChangeStatusCommand struct {
	UID    uuid.UUID
	Status RecordStatus
}

// ChangeMetadataCommand renames a record.
type ChangeMetadataCommand struct {
	UID         uuid.UUID
	DisplayName string
}

// TriggerSequenceCommand fires an external sequence with an input, without waiting for it.
type TriggerSequenceCommand struct {
	SequenceID string
	Input      any
}

// TriggerSignalCommand publishes a named signal.
type TriggerSignalCommand struct {
	Signal  string
	Payload any
}

// ChangeLifeStatusCommand moves the board from one life status to another. Moving to
// Running initializes the board with InitData; moving to Sealed drops the records
// that must not remain on a sealed board.
type ChangeLifeStatusCommand struct {
	From     LifeStatus
	To       LifeStatus
	InitData []*DataRecord
}

// RejectCommand declines to act on an issue. Executing it never mutates the board.
type RejectCommand struct {
	Issue Issue
}

func (*AddRecordCommand) Action() ActionType          { return ActionStorage }
func (*PrepareSlotCommand) Action() ActionType        { return ActionStorage }
func (*RemoveRecordCommand) Action() ActionType       { return ActionStorage }
func (*DecommissionRecordCommand) Action() ActionType { return ActionStorage }
func (*ChangeStatusCommand) Action() ActionType       { return ActionStorage }
func (*ChangeMetadataCommand) Action() ActionType     { return ActionStorage }
func (*TriggerSequenceCommand) Action() ActionType    { return ActionTrigger }
func (*TriggerSignalCommand) Action() ActionType      { return ActionTrigger }
func (*RejectCommand) Action() ActionType             { return ActionReject }
func (*ChangeLifeStatusCommand) Action() ActionType   { return ActionLife }

func (*AddRecordCommand) Kind() string          { return "Add" }
func (*PrepareSlotCommand) Kind() string        { return "Prepare" }
func (*RemoveRecordCommand) Kind() string       { return "Remove" }
func (*DecommissionRecordCommand) Kind() string { return "Decommission" }
func (*ChangeStatusCommand) Kind() string       { return "ChangeStatus" }
func (*ChangeMetadataCommand) Kind() string     { return "ChangeMetadata" }
func (*TriggerSequenceCommand) Kind() string    { return "Sequence" }
func (*TriggerSignalCommand) Kind() string      { return "Signal" }
func (*RejectCommand) Kind() string             { return "Reject" }
func (c *ChangeLifeStatusCommand) Kind() string { return string(c.To) }

func (*AddRecordCommand) isCommand()          {}
func (*PrepareSlotCommand) isCommand()        {}
func (*RemoveRecordCommand) isCommand()       {}
func (*DecommissionRecordCommand) isCommand() {}
func (*ChangeStatusCommand) isCommand()       {}
func (*ChangeMetadataCommand) isCommand()     {}
func (*TriggerSequenceCommand) isCommand()    {}
func (*TriggerSignalCommand) isCommand()      {}
func (*RejectCommand) isCommand()             {}
func (*ChangeLifeStatusCommand) isCommand()   {}

// NewAddCommand builds the add command matching a push type.
func NewAddCommand(record *DataRecord, pushType PushType) *AddRecordCommand {
	insertIfNew, override := pushType.Flags()
	return &AddRecordCommand{Record: record, InsertIfNew: insertIfNew, Override: override}
}

// NewRemoveCommand builds the removal command matching a remove preference.
func NewRemoveCommand(uid uuid.UUID, preference RemoveResolution) Command {
	if preference == RemoveResolutionDecommission {
		return &DecommissionRecordCommand{UID: uid}
	}
	return &RemoveRecordCommand{UID: uid}
}

// CommandName renders "Action.Kind" for logs.
func CommandName(cmd Command) string {
	return string(cmd.Action()) + "." + cmd.Kind()
}
