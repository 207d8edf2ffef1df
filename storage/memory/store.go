// memory based implementation for testing purposes
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/cyp0633/libjtx/recurrence"
	"github.com/cyp0633/libjtx/storage"
)

// Store implements storage.Gateway using in-memory maps
type Store struct {
	mu          sync.RWMutex
	seq         map[string]int64
	entries     map[int64]*storage.Entry
	collections map[int64]*storage.Collection
	relations   map[int64]*storage.Relation
	categories  map[int64]*storage.Category
	comments    map[int64]*storage.Comment
	attachments map[int64]*storage.Attachment
	organizers  map[int64]*storage.Organizer
	attendees   map[int64]*storage.Attendee
	resources   map[int64]*storage.Resource
}

var _ storage.Gateway = (*Store)(nil)

// New creates a new in-memory storage
func New() *Store {
	return &Store{
		seq:         make(map[string]int64),
		entries:     make(map[int64]*storage.Entry),
		collections: make(map[int64]*storage.Collection),
		relations:   make(map[int64]*storage.Relation),
		categories:  make(map[int64]*storage.Category),
		comments:    make(map[int64]*storage.Comment),
		attachments: make(map[int64]*storage.Attachment),
		organizers:  make(map[int64]*storage.Organizer),
		attendees:   make(map[int64]*storage.Attendee),
		resources:   make(map[int64]*storage.Resource),
	}
}

// allocID hands out ids per table starting at 1, like an autoincrement column.
// Callers hold the write lock.
func (s *Store) allocID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func notFound(msg string) error {
	return storage.NewError(storage.TypeNotFound, msg, nil)
}

// sortedIDs returns the keys of m in ascending order so listings are deterministic.
func sortedIDs[T any](m map[int64]T, keep func(T) bool) []int64 {
	var ids []int64
	for id, v := range m {
		if keep(v) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Entries returns copies of all stored entries ordered by id.
func (s *Store) Entries() []*storage.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := sortedIDs(s.entries, func(*storage.Entry) bool { return true })
	out := make([]*storage.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.entries[id].Clone())
	}
	return out
}

// Entry operations

func (s *Store) GetEntryByID(_ context.Context, id int64) (*storage.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, notFound("entry not found")
	}
	return e.Clone(), nil
}

func (s *Store) InsertEntry(_ context.Context, entry *storage.Entry) (int64, error) {
	if err := entry.Validate(); err != nil {
		return 0, storage.NewError(storage.TypeInvalidInput, "invalid entry", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry.Clone()
	e.ID = s.allocID("entries")
	s.entries[e.ID] = e
	return e.ID, nil
}

func (s *Store) UpdateEntry(_ context.Context, entry *storage.Entry) error {
	if err := entry.Validate(); err != nil {
		return storage.NewError(storage.TypeInvalidInput, "invalid entry", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.ID]; !ok {
		return storage.NewError(storage.TypeConstraint, "cannot update unknown entry", nil)
	}
	s.entries[entry.ID] = entry.Clone()
	return nil
}

func (s *Store) DeleteEntryByID(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteEntry(id)
	return nil
}

// deleteEntry removes an entry with everything it owns. Callers hold the write lock.
func (s *Store) deleteEntry(id int64) {
	delete(s.entries, id)
	for rid, r := range s.relations {
		if r.EntryID == id || r.LinkedEntryID == id {
			delete(s.relations, rid)
		}
	}
	deleteOwned(s.categories, id, func(c *storage.Category) int64 { return c.EntryID })
	deleteOwned(s.comments, id, func(c *storage.Comment) int64 { return c.EntryID })
	deleteOwned(s.attachments, id, func(a *storage.Attachment) int64 { return a.EntryID })
	deleteOwned(s.organizers, id, func(o *storage.Organizer) int64 { return o.EntryID })
	deleteOwned(s.attendees, id, func(a *storage.Attendee) int64 { return a.EntryID })
	deleteOwned(s.resources, id, func(r *storage.Resource) int64 { return r.EntryID })
}

func deleteOwned[T any](m map[int64]*T, entryID int64, owner func(*T) int64) {
	for id, v := range m {
		if owner(v) == entryID {
			delete(m, id)
		}
	}
}

func (s *Store) SoftDeleteEntry(_ context.Context, id int64, lastModified int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return notFound("entry not found")
	}
	e.Deleted = true
	e.Dirty = true
	e.LastModified = lastModified
	return nil
}

// Series operations

func (s *Store) GetChildIDs(_ context.Context, parentID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for _, rid := range sortedIDs(s.relations, func(r *storage.Relation) bool {
		return r.EntryID == parentID && r.Reltype == storage.RelTypeChild
	}) {
		ids = append(ids, s.relations[rid].LinkedEntryID)
	}
	return ids, nil
}

func (s *Store) DeleteGeneratedInstances(_ context.Context, originalID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := sortedIDs(s.entries, func(e *storage.Entry) bool {
		return e.IsLinkedRecurringInstance && e.RecurOriginalID != nil && *e.RecurOriginalID == originalID
	})
	for _, id := range ids {
		s.deleteEntry(id)
	}
	return len(ids), nil
}

func (s *Store) SetExceptionDates(_ context.Context, originalID int64, exdates string, lastModified int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[originalID]
	if !ok {
		return notFound("original not found")
	}
	e.ExDate = recurrence.ParseDateList(exdates)
	e.Sequence++
	e.Dirty = true
	e.LastModified = lastModified
	return nil
}

func (s *Store) SetInstanceDetached(_ context.Context, instanceID int64, lastModified int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[instanceID]
	if !ok {
		return notFound("instance not found")
	}
	e.IsLinkedRecurringInstance = false
	e.Sequence++
	e.Dirty = true
	e.LastModified = lastModified
	return nil
}

func (s *Store) ListOriginalIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedIDs(s.entries, func(e *storage.Entry) bool {
		return !e.Deleted && !e.IsInstance() && e.IsRecurring()
	}), nil
}

func (s *Store) ListOrphanInstanceIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedIDs(s.entries, func(e *storage.Entry) bool {
		if !e.IsInstance() {
			return false
		}
		original, ok := s.entries[*e.RecurOriginalID]
		return !ok || !original.IsRecurring()
	}), nil
}

// Collection operations

func (s *Store) GetCollection(_ context.Context, id int64) (*storage.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[id]
	if !ok {
		return nil, notFound("collection not found")
	}
	out := *c
	return &out, nil
}

func (s *Store) InsertCollection(_ context.Context, collection *storage.Collection) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *collection
	c.ID = s.allocID("collections")
	s.collections[c.ID] = &c
	return c.ID, nil
}

// Sub-property operations

func (s *Store) GetSubProperties(_ context.Context, entryID int64) (*storage.SubProperties, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := &storage.SubProperties{
		Categories:  collectOwned(s.categories, entryID, func(c *storage.Category) int64 { return c.EntryID }),
		Comments:    collectOwned(s.comments, entryID, func(c *storage.Comment) int64 { return c.EntryID }),
		Attachments: collectOwned(s.attachments, entryID, func(a *storage.Attachment) int64 { return a.EntryID }),
		Attendees:   collectOwned(s.attendees, entryID, func(a *storage.Attendee) int64 { return a.EntryID }),
		Resources:   collectOwned(s.resources, entryID, func(r *storage.Resource) int64 { return r.EntryID }),
	}
	if orgs := collectOwned(s.organizers, entryID, func(o *storage.Organizer) int64 { return o.EntryID }); len(orgs) > 0 {
		subs.Organizer = &orgs[0]
	}
	return subs, nil
}

func collectOwned[T any](m map[int64]*T, entryID int64, owner func(*T) int64) []T {
	var out []T
	for _, id := range sortedIDs(m, func(v *T) bool { return owner(v) == entryID }) {
		out = append(out, *m[id])
	}
	return out
}

// insertOwned stores a copy of v under a fresh id after checking that its owner exists.
// Callers hold the write lock.
func insertOwned[T any](s *Store, table string, m map[int64]*T, v T, entryID int64, setID func(*T, int64)) (int64, error) {
	if _, ok := s.entries[entryID]; !ok {
		return 0, storage.NewError(storage.TypeConstraint, "owning entry does not exist", nil)
	}
	id := s.allocID(table)
	setID(&v, id)
	m[id] = &v
	return id, nil
}

func (s *Store) InsertCategory(_ context.Context, category *storage.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertOwned(s, "categories", s.categories, *category, category.EntryID, func(c *storage.Category, id int64) { c.ID = id })
}

func (s *Store) InsertComment(_ context.Context, comment *storage.Comment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertOwned(s, "comments", s.comments, *comment, comment.EntryID, func(c *storage.Comment, id int64) { c.ID = id })
}

func (s *Store) InsertAttachment(_ context.Context, attachment *storage.Attachment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertOwned(s, "attachments", s.attachments, *attachment, attachment.EntryID, func(a *storage.Attachment, id int64) { a.ID = id })
}

func (s *Store) InsertOrganizer(_ context.Context, organizer *storage.Organizer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertOwned(s, "organizers", s.organizers, *organizer, organizer.EntryID, func(o *storage.Organizer, id int64) { o.ID = id })
}

func (s *Store) InsertAttendee(_ context.Context, attendee *storage.Attendee) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertOwned(s, "attendees", s.attendees, *attendee, attendee.EntryID, func(a *storage.Attendee, id int64) { a.ID = id })
}

func (s *Store) InsertResource(_ context.Context, resource *storage.Resource) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertOwned(s, "resources", s.resources, *resource, resource.EntryID, func(r *storage.Resource, id int64) { r.ID = id })
}

func (s *Store) InsertRelation(_ context.Context, relation *storage.Relation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertOwned(s, "relations", s.relations, *relation, relation.EntryID, func(r *storage.Relation, id int64) { r.ID = id })
}
