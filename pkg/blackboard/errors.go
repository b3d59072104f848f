package blackboard

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrMissingDefinition is returned when a template or other definition cannot be resolved.
	ErrMissingDefinition = errors.New("missing definition")

	// ErrCommandExecution wraps any failure raised while executing a command batch.
	ErrCommandExecution = errors.New("command execution failed")

	// ErrPushValidation is returned when a record has an issue and nothing can resolve it.
	ErrPushValidation = errors.New("push validation failed")

	// ErrPush wraps infrastructure failures while storing a record.
	ErrPush = errors.New("push failed")

	// ErrRepositoryNotFound is returned when no repository is bound for a logical type.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrProjectionUnsupported is returned when a payload cannot be projected to the requested type.
	ErrProjectionUnsupported = errors.New("projection not supported")

	// ErrBoardNotBuilt is returned by operations on a board that has no template yet.
	ErrBoardNotBuilt = errors.New("board not built")

	// ErrBoardSealed is returned when writing to a sealed or done board.
	ErrBoardSealed = errors.New("board sealed")

	// ErrCascadeDepthExceeded is returned when controller follow-up commands nest too deep.
	ErrCascadeDepthExceeded = errors.New("command cascade depth exceeded")

	// ErrUnknownCommand is returned for a command variant the board cannot dispatch.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrNonDirectRecord is returned when a non Direct record reaches the add path.
	ErrNonDirectRecord = errors.New("only Direct records can be stored")

	// ErrNotFound is returned by stores and repositories for missing keys.
	ErrNotFound = errors.New("not found")
)

// MissingDefinitionError names the definition that could not be resolved.
type MissingDefinitionError struct {
	Kind string
	Key  string
}

func (e *MissingDefinitionError) Error() string {
	return fmt.Sprintf("missing %s definition: %s", e.Kind, e.Key)
}

func (e *MissingDefinitionError) Unwrap() error {
	return ErrMissingDefinition
}

// CommandExecutionError reports the command that failed and the commands of the same
// batch that were already applied. Applied commands are not rolled back.
type CommandExecutionError struct {
	Command Command
	Applied []Command
	Err     error
}

func (e *CommandExecutionError) Error() string {
	return fmt.Sprintf("command %s failed after %d applied command(s): %v", CommandName(e.Command), len(e.Applied), e.Err)
}

func (e *CommandExecutionError) Unwrap() []error {
	return []error{ErrCommandExecution, e.Err}
}

// PushValidationError carries the unresolved issue.
type PushValidationError struct {
	Issue  Issue
	Reason string
}

func (e *PushValidationError) Error() string {
	return fmt.Sprintf("push validation failed (%s): %s: %s", e.Issue.Kind(), e.Reason, e.Issue.Describe())
}

func (e *PushValidationError) Unwrap() error {
	return ErrPushValidation
}

// PushError reports an infrastructure failure while storing a record.
type PushError struct {
	UID uuid.UUID
	Err error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("failed to push record %s: %v", e.UID, e.Err)
}

func (e *PushError) Unwrap() []error {
	return []error{ErrPush, e.Err}
}

// IsNotFound returns true for Redis "key not found" errors (redis.Nil) and ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil) || errors.Is(err, ErrNotFound)
}
