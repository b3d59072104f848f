package blackboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BoardID identifies one board. It never changes once the registry assigned it.
type BoardID struct {
	UID         uuid.UUID `json:"uid" yaml:"uid"`
	Name        string    `json:"name" yaml:"name"`
	TemplateKey string    `json:"template_key" yaml:"template_key"`
}

// Key returns the registry lookup key for the board (name + "/" + template key).
func (b BoardID) Key() string {
	return BoardKey(b.Name, b.TemplateKey)
}

// IsZero reports whether the identity has not been assigned yet.
func (b BoardID) IsZero() bool {
	return b.UID == uuid.Nil
}

func (b BoardID) String() string {
	return fmt.Sprintf("%s (%s)", b.Key(), b.UID)
}

// BoardKey builds the registry lookup key for a board name and template key.
func BoardKey(name, templateKey string) string {
	return name + "/" + templateKey
}

// RecordStatus is a bitmask of record lifecycle states.
type RecordStatus uint8

const (
	RecordStatusNone           RecordStatus = 0
	RecordStatusPreparation    RecordStatus = 1
	RecordStatusReady          RecordStatus = 2
	RecordStatusDecommissioned RecordStatus = 4
	RecordStatusError          RecordStatus = 8

	// RecordStatusAny matches every status in a filter.
	RecordStatusAny = RecordStatusPreparation | RecordStatusReady | RecordStatusDecommissioned | RecordStatusError
)

var recordStatusNames = []struct {
	status RecordStatus
	name   string
}{
	{RecordStatusPreparation, "Preparation"},
	{RecordStatusReady, "Ready"},
	{RecordStatusDecommissioned, "Decommissioned"},
	{RecordStatusError, "Error"},
}

// Has reports whether any bit of mask is set on s.
func (s RecordStatus) Has(mask RecordStatus) bool {
	return s&mask != 0
}

// Matches reports whether s passes a status filter. A zero filter matches everything.
func (s RecordStatus) Matches(filter RecordStatus) bool {
	if filter == RecordStatusNone {
		return true
	}
	return s.Has(filter)
}

func (s RecordStatus) String() string {
	if s == RecordStatusNone {
		return "None"
	}
	var parts []string
	for _, n := range recordStatusNames {
		if s&n.status != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Validate checks that no unknown bits are set.
func (s RecordStatus) Validate() error {
	if s&^RecordStatusAny != 0 {
		return fmt.Errorf("unknown record status bits: %d", s)
	}
	return nil
}

// MarshalText encodes the status as its "|"-joined names.
func (s RecordStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a "|"-joined list of status names.
func (s *RecordStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseRecordStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseRecordStatus parses "Ready", "ready|preparation", "None" or "" into a status mask.
func ParseRecordStatus(value string) (RecordStatus, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "none") {
		return RecordStatusNone, nil
	}
	if strings.EqualFold(value, "any") {
		return RecordStatusAny, nil
	}

	var status RecordStatus
	for _, part := range strings.Split(value, "|") {
		part = strings.TrimSpace(part)
		found := false
		for _, n := range recordStatusNames {
			if strings.EqualFold(part, n.name) {
				status |= n.status
				found = true
				break
			}
		}
		if !found {
			return RecordStatusNone, fmt.Errorf("unknown record status: %q", part)
		}
	}
	return status, nil
}

// RecordContainerType tells whether a record is physically stored or derived.
type RecordContainerType string

const (
	// ContainerDirect records are stored as-is and are the only ones accepted by add commands.
	ContainerDirect RecordContainerType = "Direct"

	// ContainerProjection records are read-side views computed from stored data.
	ContainerProjection RecordContainerType = "Projection"
)

// Validate checks if the RecordContainerType is a valid enum value.
func (t RecordContainerType) Validate() error {
	switch t {
	case ContainerDirect, ContainerProjection:
		return nil
	default:
		return fmt.Errorf("unknown record container type: %q", t)
	}
}

// RecordMetadata is the registry entry kept for every record of a board.
type RecordMetadata struct {
	UID                 uuid.UUID    `json:"uid"`
	LogicalType         string       `json:"logical_type"`
	DisplayName         string       `json:"display_name,omitempty"`
	ContainsType        string       `json:"contains_type,omitempty"`
	Status              RecordStatus `json:"status"`
	CreatedAt           time.Time    `json:"created_at"`
	CreatorIdentity     string       `json:"creator,omitempty"`
	UpdatedAt           time.Time    `json:"updated_at"`
	LastUpdaterIdentity string       `json:"last_updater,omitempty"`
}

// Validate checks if the metadata has valid field values.
func (m *RecordMetadata) Validate() error {
	if m.LogicalType == "" {
		return fmt.Errorf("logical type cannot be empty")
	}
	if err := m.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}
	return nil
}

// DataRecord is a record's metadata plus its payload. Payload is nil for prepared slots.
type DataRecord struct {
	RecordMetadata
	ContainerType RecordContainerType `json:"container_type"`
	Payload       any                 `json:"payload,omitempty"`
}

// NewDataRecord builds a Direct record in Ready status with its contained type inferred
// from the payload.
func NewDataRecord(uid uuid.UUID, logicalType, displayName string, payload any) *DataRecord {
	return &DataRecord{
		RecordMetadata: RecordMetadata{
			UID:          uid,
			LogicalType:  logicalType,
			DisplayName:  displayName,
			ContainsType: TypeDescriptorOf(payload),
			Status:       RecordStatusReady,
		},
		ContainerType: ContainerDirect,
		Payload:       payload,
	}
}

// Metadata returns a copy of the record metadata.
func (r *DataRecord) Metadata() RecordMetadata {
	return r.RecordMetadata
}

// HasPayload reports whether the record carries data (false for empty slots).
func (r *DataRecord) HasPayload() bool {
	return r.Payload != nil
}

// TypeDescriptorOf names the Go type of a payload, or "" when there is none.
func TypeDescriptorOf(payload any) string {
	if payload == nil {
		return ""
	}
	return fmt.Sprintf("%T", payload)
}

// PushType selects insert/override semantics of a push.
type PushType string

const (
	// PushTypePush inserts or overrides.
	PushTypePush PushType = "Push"

	// PushTypeOnlyNew inserts only when the uid is not yet stored.
	PushTypeOnlyNew PushType = "OnlyNew"

	// PushTypeUpdateOnly overrides only when the uid is already stored.
	PushTypeUpdateOnly PushType = "UpdateOnly"
)

// Flags converts the push type into the add command flags.
func (p PushType) Flags() (insertIfNew, override bool) {
	switch p {
	case PushTypeOnlyNew:
		return true, false
	case PushTypeUpdateOnly:
		return false, true
	default:
		return true, true
	}
}

// Validate checks if the PushType is a valid enum value.
func (p PushType) Validate() error {
	switch p {
	case PushTypePush, PushTypeOnlyNew, PushTypeUpdateOnly:
		return nil
	default:
		return fmt.Errorf("unknown push type: %q", p)
	}
}

// LifeStatus is the lifecycle of a board.
type LifeStatus string

const (
	LifeStatusNone    LifeStatus = "None"
	LifeStatusRunning LifeStatus = "Running"
	LifeStatusSealed  LifeStatus = "Sealed"
	LifeStatusDone    LifeStatus = "Done"
)

// AcceptsWrites reports whether records can still be pushed in this life status.
func (l LifeStatus) AcceptsWrites() bool {
	return l == LifeStatusRunning || l == LifeStatusNone
}

// Clock supplies the current UTC time. Tests inject deterministic clocks.
type Clock interface {
	UtcNow() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// UtcNow returns time.Now in UTC.
func (SystemClock) UtcNow() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// UtcNow calls f.
func (f ClockFunc) UtcNow() time.Time {
	return f()
}
