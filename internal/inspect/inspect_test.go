package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/democrite/internal/board"
	"github.com/dyluth/democrite/internal/timespec"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 10, 29, 14, 0, 0, 0, time.UTC)

// fakeSource serves records kept in insertion order.
type fakeSource struct {
	records []*blackboard.DataRecord
}

func (s *fakeSource) add(logicalType, name string, status blackboard.RecordStatus, age time.Duration, payload any) *blackboard.DataRecord {
	r := blackboard.NewDataRecord(uuid.New(), logicalType, name, payload)
	r.Status = status
	r.CreatedAt = now.Add(-age)
	s.records = append(s.records, r)
	return r
}

func (s *fakeSource) GetAllStoredMetaData(_ context.Context, filter board.MetadataFilter) ([]blackboard.RecordMetadata, error) {
	var out []blackboard.RecordMetadata
	for _, r := range s.records {
		if r.Status.Matches(filter.Status) {
			out = append(out, r.RecordMetadata)
		}
	}
	return out, nil
}

func (s *fakeSource) GetStoredRecords(_ context.Context, uids ...uuid.UUID) ([]*blackboard.DataRecord, error) {
	var out []*blackboard.DataRecord
	for _, uid := range uids {
		for _, r := range s.records {
			if r.UID == uid {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func newSource() *fakeSource {
	s := &fakeSource{}
	s.add("doc.article", "Intro", blackboard.RecordStatusReady, 3*time.Hour, map[string]any{"title": "Intro"})
	s.add("doc.note", "", blackboard.RecordStatusPreparation, 30*time.Minute, nil)
	s.add("report", "Weekly", blackboard.RecordStatusDecommissioned, 10*time.Second, "line one\nline two")
	return s
}

func TestRecords_Filters(t *testing.T) {
	ctx := context.Background()
	src := newSource()

	tests := []struct {
		name    string
		filters *FilterCriteria
		want    []string
	}{
		{"no filter", nil, []string{"doc.article", "doc.note", "report"}},
		{"glob", &FilterCriteria{TypeGlob: "doc.*"}, []string{"doc.article", "doc.note"}},
		{"status", &FilterCriteria{Status: blackboard.RecordStatusReady | blackboard.RecordStatusPreparation}, []string{"doc.article", "doc.note"}},
		{"created since", &FilterCriteria{Created: timespec.Range{Since: now.Add(-time.Hour)}}, []string{"doc.note", "report"}},
		{"created until", &FilterCriteria{Created: timespec.Range{Until: now.Add(-time.Hour)}}, []string{"doc.article"}},
		{"nothing", &FilterCriteria{TypeGlob: "missing"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Records(ctx, src, tt.filters)
			require.NoError(t, err)
			var got []string
			for _, r := range records {
				got = append(got, r.LogicalType)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Records(ctx, src, &FilterCriteria{TypeGlob: "["})
	assert.ErrorContains(t, err, "invalid type pattern")
}

func TestListRecords(t *testing.T) {
	ctx := context.Background()
	src := newSource()

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ListRecords(ctx, src, "main", OutputFormatDefault, nil, &buf))
		out := buf.String()
		assert.Contains(t, out, "Records on board 'main'")
		assert.Contains(t, out, "doc.article")
		assert.Contains(t, out, "3 records found")
	})

	t.Run("empty table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ListRecords(ctx, &fakeSource{}, "main", OutputFormatDefault, nil, &buf))
		assert.Equal(t, "No records found on board 'main'\n", buf.String())
	})

	t.Run("jsonl", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ListRecords(ctx, src, "main", OutputFormatJSONL, &FilterCriteria{TypeGlob: "report"}, &buf))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)

		var decoded blackboard.DataRecord
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
		assert.Equal(t, "Weekly", decoded.DisplayName)
		assert.Equal(t, blackboard.RecordStatusDecommissioned, decoded.Status)
	})

	t.Run("unknown format", func(t *testing.T) {
		err := ListRecords(ctx, src, "main", "xml", nil, &bytes.Buffer{})
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestGetRecord(t *testing.T) {
	ctx := context.Background()
	src := newSource()

	var buf bytes.Buffer
	require.NoError(t, GetRecord(ctx, src, src.records[0].UID, &buf))
	assert.Contains(t, buf.String(), `"logical_type": "doc.article"`)

	err := GetRecord(ctx, src, uuid.New(), &buf)
	assert.True(t, IsNotFound(err))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", formatPayload(nil))
	assert.Equal(t, "line one", formatPayload("\n  line one\nline two"))
	assert.Equal(t, `{"a":1}`, formatPayload(map[string]int{"a": 1}))
	assert.Equal(t, strings.Repeat("x", 37)+"...", formatPayload(strings.Repeat("x", 50)))

	assert.Equal(t, "-", formatAge(time.Time{}, now))
	assert.Equal(t, "10s ago", formatAge(now.Add(-10*time.Second), now))
	assert.Equal(t, "30m ago", formatAge(now.Add(-30*time.Minute), now))
	assert.Equal(t, "3h ago", formatAge(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", formatAge(now.Add(-50*time.Hour), now))

	assert.Equal(t, "abcdef01", formatID("abcdef01-0000"))
	assert.Equal(t, "-", formatName(""))
}

func TestFormatBoards(t *testing.T) {
	var buf bytes.Buffer
	FormatBoards(&buf, nil, "test")
	assert.Equal(t, "No boards registered in namespace 'test'\n", buf.String())

	buf.Reset()
	FormatBoards(&buf, []BoardSummary{{
		ID:      blackboard.BoardID{UID: uuid.New(), Name: "main", TemplateKey: "docs"},
		Status:  blackboard.LifeStatusRunning,
		Records: 4,
	}}, "test")
	assert.Contains(t, buf.String(), "main")
	assert.Contains(t, buf.String(), "docs")
}
