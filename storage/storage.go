package storage

import (
	"context"
	"slices"

	"github.com/emersion/go-ical"
	"github.com/samber/mo"
)

// Gateway connects the recurrence logic with your backend storage (e.g. database).
// Please use the error types provided: a missing entry is a not_found *Error and an
// update of an unknown id is a constraint *Error.
//
// Every call is treated as atomic at the row level; no call spans a multi-row transaction.
type Gateway interface {
	// GetEntryByID finds an entry by id.
	GetEntryByID(ctx context.Context, id int64) (*Entry, error)
	// InsertEntry stores a new entry and returns the id assigned to it. The entry's own ID is ignored.
	InsertEntry(ctx context.Context, entry *Entry) (int64, error)
	// UpdateEntry replaces the stored entry with the same id.
	UpdateEntry(ctx context.Context, entry *Entry) error
	// DeleteEntryByID physically removes an entry together with its sub-properties and relations.
	// Deleting an unknown id is not an error.
	DeleteEntryByID(ctx context.Context, id int64) error
	// SoftDeleteEntry marks an entry deleted so the sync layer can remove it later.
	SoftDeleteEntry(ctx context.Context, id int64, lastModified int64) error

	// GetChildIDs returns the ids linked from parentID with a CHILD relation.
	GetChildIDs(ctx context.Context, parentID int64) ([]int64, error)
	// DeleteGeneratedInstances physically removes every entry whose original is originalID
	// and that is still a linked recurring instance. Returns the number of removed entries.
	DeleteGeneratedInstances(ctx context.Context, originalID int64) (int, error)
	// SetExceptionDates stores the serialized exception list of an original, bumping its
	// sequence, marking it dirty and setting lastModified.
	SetExceptionDates(ctx context.Context, originalID int64, exdates string, lastModified int64) error
	// SetInstanceDetached clears the linked flag of an instance, bumping its sequence,
	// marking it dirty and setting lastModified.
	SetInstanceDetached(ctx context.Context, instanceID int64, lastModified int64) error
	// ListOriginalIDs returns the ids of non-deleted entries carrying recurrence data
	// (a rule or addition dates) that are not instances themselves.
	ListOriginalIDs(ctx context.Context) ([]int64, error)
	// ListOrphanInstanceIDs returns instances whose original is missing or carries no recurrence data.
	ListOrphanInstanceIDs(ctx context.Context) ([]int64, error)

	// GetCollection finds a collection by id.
	GetCollection(ctx context.Context, id int64) (*Collection, error)
	// InsertCollection stores a new collection and returns its id.
	InsertCollection(ctx context.Context, collection *Collection) (int64, error)

	// GetSubProperties loads every sub-property owned by entryID.
	GetSubProperties(ctx context.Context, entryID int64) (*SubProperties, error)
	InsertCategory(ctx context.Context, category *Category) (int64, error)
	InsertComment(ctx context.Context, comment *Comment) (int64, error)
	InsertAttachment(ctx context.Context, attachment *Attachment) (int64, error)
	InsertOrganizer(ctx context.Context, organizer *Organizer) (int64, error)
	InsertAttendee(ctx context.Context, attendee *Attendee) (int64, error)
	InsertResource(ctx context.Context, resource *Resource) (int64, error)
	InsertRelation(ctx context.Context, relation *Relation) (int64, error)
}

// Kind is the iCalendar component an entry is stored as.
type Kind string

const (
	// KindJournal covers journals and notes; a note is a journal without a start.
	KindJournal Kind = ical.CompJournal
	KindTodo    Kind = ical.CompToDo
)

// Entry is a journal, note or to-do. Timestamps are epoch millis.
type Entry struct {
	ID         int64
	UID        string
	Kind       Kind
	Collection int64

	Summary         string
	Description     string
	Status          string
	PercentComplete *int

	Dtstart         *int64
	DtstartTimezone string // recurrence.TZAllDay, "" (floating) or an IANA zone
	Due             *int64
	DueTimezone     string

	// Recurrence data, only carried by originals.
	RRule  string
	RDate  []int64
	ExDate []int64

	// RecurID identifies the occurrence an instance stands for.
	RecurID string
	// RecurOriginalID is nil for originals and the original's id for every instance.
	RecurOriginalID *int64
	// IsLinkedRecurringInstance stays true while an instance mirrors the rule.
	IsLinkedRecurringInstance bool

	Sequence     int64
	Dirty        bool
	Deleted      bool
	Dtstamp      int64
	Created      int64
	LastModified int64

	// Sync identity, owned by the sync layer.
	Filename    string
	ETag        string
	ScheduleTag string
}

// Start returns the start timestamp, if any.
func (e *Entry) Start() mo.Option[int64] {
	return mo.PointerToOption(e.Dtstart)
}

// DueAt returns the due timestamp, if any.
func (e *Entry) DueAt() mo.Option[int64] {
	return mo.PointerToOption(e.Due)
}

// IsRecurring reports whether the entry governs a series.
func (e *Entry) IsRecurring() bool {
	return e.RRule != "" || len(e.RDate) > 0
}

// IsInstance reports whether the entry was generated from (or detached out of) a series.
func (e *Entry) IsInstance() bool {
	return e.RecurOriginalID != nil
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	c.PercentComplete = clonePtr(e.PercentComplete)
	c.Dtstart = clonePtr(e.Dtstart)
	c.Due = clonePtr(e.Due)
	c.RecurOriginalID = clonePtr(e.RecurOriginalID)
	c.RDate = slices.Clone(e.RDate)
	c.ExDate = slices.Clone(e.ExDate)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Collection groups entries. Entries of local collections are never synced and
// get deleted physically; all others are soft-deleted for the sync layer.
type Collection struct {
	ID    int64
	Name  string
	Local bool
}

// RelType values of a Relation.
const (
	RelTypeParent  = "PARENT"
	RelTypeChild   = "CHILD"
	RelTypeSibling = "SIBLING"
)

// Relation links EntryID to LinkedEntryID. A CHILD relation on a parent points at its child.
type Relation struct {
	ID            int64
	EntryID       int64
	LinkedEntryID int64
	Reltype       string
}

type Category struct {
	ID       int64
	EntryID  int64
	Text     string
	Language string
}

type Comment struct {
	ID       int64
	EntryID  int64
	Text     string
	Language string
}

type Attachment struct {
	ID       int64
	EntryID  int64
	URI      string
	FmtType  string
	Filename string
}

type Organizer struct {
	ID         int64
	EntryID    int64
	CalAddress string
	CN         string
}

type Attendee struct {
	ID         int64
	EntryID    int64
	CalAddress string
	CN         string
	Role       string
	PartStat   string
	RSVP       bool
}

type Resource struct {
	ID      int64
	EntryID int64
	Text    string
}

// SubProperties bundles everything an entry owns besides its own row.
type SubProperties struct {
	Categories  []Category
	Comments    []Comment
	Attachments []Attachment
	Organizer   *Organizer
	Attendees   []Attendee
	Resources   []Resource
}

// Reparent returns a copy whose items have unset ids and belong to entryID.
func (s *SubProperties) Reparent(entryID int64) *SubProperties {
	out := &SubProperties{
		Categories:  slices.Clone(s.Categories),
		Comments:    slices.Clone(s.Comments),
		Attachments: slices.Clone(s.Attachments),
		Attendees:   slices.Clone(s.Attendees),
		Resources:   slices.Clone(s.Resources),
	}
	for i := range out.Categories {
		out.Categories[i].ID, out.Categories[i].EntryID = 0, entryID
	}
	for i := range out.Comments {
		out.Comments[i].ID, out.Comments[i].EntryID = 0, entryID
	}
	for i := range out.Attachments {
		out.Attachments[i].ID, out.Attachments[i].EntryID = 0, entryID
	}
	if s.Organizer != nil {
		org := *s.Organizer
		org.ID, org.EntryID = 0, entryID
		out.Organizer = &org
	}
	for i := range out.Attendees {
		out.Attendees[i].ID, out.Attendees[i].EntryID = 0, entryID
	}
	for i := range out.Resources {
		out.Resources[i].ID, out.Resources[i].EntryID = 0, entryID
	}
	return out
}
