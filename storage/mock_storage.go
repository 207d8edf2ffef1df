package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockGateway implements the Gateway interface for testing
type MockGateway struct {
	mock.Mock
}

var _ Gateway = (*MockGateway)(nil)

func (m *MockGateway) GetEntryByID(ctx context.Context, id int64) (*Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Entry), args.Error(1)
}

func (m *MockGateway) InsertEntry(ctx context.Context, entry *Entry) (int64, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) UpdateEntry(ctx context.Context, entry *Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockGateway) DeleteEntryByID(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGateway) SoftDeleteEntry(ctx context.Context, id int64, lastModified int64) error {
	args := m.Called(ctx, id, lastModified)
	return args.Error(0)
}

func (m *MockGateway) GetChildIDs(ctx context.Context, parentID int64) ([]int64, error) {
	args := m.Called(ctx, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockGateway) DeleteGeneratedInstances(ctx context.Context, originalID int64) (int, error) {
	args := m.Called(ctx, originalID)
	return args.Int(0), args.Error(1)
}

func (m *MockGateway) SetExceptionDates(ctx context.Context, originalID int64, exdates string, lastModified int64) error {
	args := m.Called(ctx, originalID, exdates, lastModified)
	return args.Error(0)
}

func (m *MockGateway) SetInstanceDetached(ctx context.Context, instanceID int64, lastModified int64) error {
	args := m.Called(ctx, instanceID, lastModified)
	return args.Error(0)
}

func (m *MockGateway) ListOriginalIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockGateway) ListOrphanInstanceIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockGateway) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Collection), args.Error(1)
}

func (m *MockGateway) InsertCollection(ctx context.Context, collection *Collection) (int64, error) {
	args := m.Called(ctx, collection)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) GetSubProperties(ctx context.Context, entryID int64) (*SubProperties, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SubProperties), args.Error(1)
}

func (m *MockGateway) InsertCategory(ctx context.Context, category *Category) (int64, error) {
	args := m.Called(ctx, category)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) InsertComment(ctx context.Context, comment *Comment) (int64, error) {
	args := m.Called(ctx, comment)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) InsertAttachment(ctx context.Context, attachment *Attachment) (int64, error) {
	args := m.Called(ctx, attachment)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) InsertOrganizer(ctx context.Context, organizer *Organizer) (int64, error) {
	args := m.Called(ctx, organizer)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) InsertAttendee(ctx context.Context, attendee *Attendee) (int64, error) {
	args := m.Called(ctx, attendee)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) InsertResource(ctx context.Context, resource *Resource) (int64, error) {
	args := m.Called(ctx, resource)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) InsertRelation(ctx context.Context, relation *Relation) (int64, error) {
	args := m.Called(ctx, relation)
	return args.Get(0).(int64), args.Error(1)
}

// --- Helper methods for creating test data ---

// NewMockJournal creates a journal entry starting at start in zone tz.
func NewMockJournal(id int64, uid, summary string, start int64, tz string) *Entry {
	return &Entry{
		ID:              id,
		UID:             uid,
		Kind:            KindJournal,
		Summary:         summary,
		Dtstart:         &start,
		DtstartTimezone: tz,
	}
}

// NewMockTodo creates a to-do starting at start and due at due, both in zone tz.
func NewMockTodo(id int64, uid, summary string, start, due int64, tz string) *Entry {
	return &Entry{
		ID:              id,
		UID:             uid,
		Kind:            KindTodo,
		Summary:         summary,
		Dtstart:         &start,
		DtstartTimezone: tz,
		Due:             &due,
		DueTimezone:     tz,
	}
}
