// Package sqlite persists entries in a SQLite database through gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cyp0633/libjtx/storage"
)

// Store implements storage.Gateway on top of gorm.
type Store struct {
	db *gorm.DB
}

var _ storage.Gateway = (*Store)(nil)

// Open establishes a SQLite connection and performs schema migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	store, err := New(db)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", "path", path)
	}
	return store, nil
}

// New wraps an open gorm connection, migrating the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.NewError(storage.TypeNotFound, what+" not found", nil)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Entry operations

func (s *Store) GetEntryByID(ctx context.Context, id int64) (*storage.Entry, error) {
	var row entryRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, translate(err, "entry")
	}
	return row.toEntry(), nil
}

func (s *Store) InsertEntry(ctx context.Context, entry *storage.Entry) (int64, error) {
	if err := entry.Validate(); err != nil {
		return 0, storage.NewError(storage.TypeInvalidInput, "invalid entry", err)
	}

	row := entryToRow(entry)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}
	return row.ID, nil
}

func (s *Store) UpdateEntry(ctx context.Context, entry *storage.Entry) error {
	if err := entry.Validate(); err != nil {
		return storage.NewError(storage.TypeInvalidInput, "invalid entry", err)
	}
	if entry.ID == 0 {
		return storage.NewError(storage.TypeConstraint, "cannot update entry without id", nil)
	}

	row := entryToRow(entry)
	res := s.db.WithContext(ctx).Select("*").Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to update entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.NewError(storage.TypeConstraint, "cannot update unknown entry", nil)
	}
	return nil
}

func (s *Store) DeleteEntryByID(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteEntry(tx, id)
	})
}

// deleteEntry removes an entry together with its sub-properties and relations.
func deleteEntry(tx *gorm.DB, id int64) error {
	for _, model := range ownedModels() {
		if err := tx.Where("entry_id = ?", id).Delete(model).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("entry_id = ? OR linked_entry_id = ?", id, id).Delete(&relationRow{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", id).Delete(&entryRow{}).Error
}

func (s *Store) SoftDeleteEntry(ctx context.Context, id int64, lastModified int64) error {
	return s.updateFlags(ctx, id, "entry", map[string]any{
		"deleted":       true,
		"dirty":         true,
		"last_modified": lastModified,
	})
}

// updateFlags applies column updates to one entry, reporting a missing row as not found.
func (s *Store) updateFlags(ctx context.Context, id int64, what string, values map[string]any) error {
	res := s.db.WithContext(ctx).Model(&entryRow{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update %s: %w", what, res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.NewError(storage.TypeNotFound, what+" not found", nil)
	}
	return nil
}

// Series operations

func (s *Store) GetChildIDs(ctx context.Context, parentID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&relationRow{}).
		Where("entry_id = ? AND reltype = ?", parentID, storage.RelTypeChild).
		Order("id").
		Pluck("linked_entry_id", &ids).Error
	return ids, err
}

func (s *Store) DeleteGeneratedInstances(ctx context.Context, originalID int64) (int, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entryRow{}).
			Where("recur_original_id = ? AND is_linked_recurring_instance = ?", originalID, true).
			Order("id").
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		for _, id := range ids {
			if err := deleteEntry(tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete instances of %d: %w", originalID, err)
	}
	return len(ids), nil
}

func (s *Store) SetExceptionDates(ctx context.Context, originalID int64, exdates string, lastModified int64) error {
	return s.updateFlags(ctx, originalID, "original", map[string]any{
		"exdate":        exdates,
		"sequence":      gorm.Expr("sequence + 1"),
		"dirty":         true,
		"last_modified": lastModified,
	})
}

func (s *Store) SetInstanceDetached(ctx context.Context, instanceID int64, lastModified int64) error {
	return s.updateFlags(ctx, instanceID, "instance", map[string]any{
		"is_linked_recurring_instance": false,
		"sequence":                     gorm.Expr("sequence + 1"),
		"dirty":                        true,
		"last_modified":                lastModified,
	})
}

func (s *Store) ListOriginalIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&entryRow{}).
		Where("deleted = ? AND recur_original_id IS NULL AND (rrule <> '' OR rdate <> '')", false).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (s *Store) ListOrphanInstanceIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Raw(`
		SELECT i.id FROM icalobject i
		LEFT JOIN icalobject o ON o.id = i.recur_original_id
		WHERE i.recur_original_id IS NOT NULL
		  AND (o.id IS NULL OR (o.rrule = '' AND o.rdate = ''))
		ORDER BY i.id`).Scan(&ids).Error
	return ids, err
}

// Collection operations

func (s *Store) GetCollection(ctx context.Context, id int64) (*storage.Collection, error) {
	var row collectionRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, translate(err, "collection")
	}
	return &storage.Collection{ID: row.ID, Name: row.Name, Local: row.Local}, nil
}

func (s *Store) InsertCollection(ctx context.Context, collection *storage.Collection) (int64, error) {
	row := collectionRow{Name: collection.Name, Local: collection.Local}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("failed to insert collection: %w", err)
	}
	return row.ID, nil
}

// Sub-property operations

func (s *Store) GetSubProperties(ctx context.Context, entryID int64) (*storage.SubProperties, error) {
	db := s.db.WithContext(ctx)
	subs := &storage.SubProperties{}

	var categories []categoryRow
	var comments []commentRow
	var attachments []attachmentRow
	var organizers []organizerRow
	var attendees []attendeeRow
	var resources []resourceRow
	for _, dest := range []any{&categories, &comments, &attachments, &organizers, &attendees, &resources} {
		if err := db.Where("entry_id = ?", entryID).Order("id").Find(dest).Error; err != nil {
			return nil, fmt.Errorf("failed to load sub-properties of %d: %w", entryID, err)
		}
	}

	for _, r := range categories {
		subs.Categories = append(subs.Categories, storage.Category{ID: r.ID, EntryID: r.EntryID, Text: r.Text, Language: r.Language})
	}
	for _, r := range comments {
		subs.Comments = append(subs.Comments, storage.Comment{ID: r.ID, EntryID: r.EntryID, Text: r.Text, Language: r.Language})
	}
	for _, r := range attachments {
		subs.Attachments = append(subs.Attachments, storage.Attachment{ID: r.ID, EntryID: r.EntryID, URI: r.URI, FmtType: r.FmtType, Filename: r.Filename})
	}
	if len(organizers) > 0 {
		r := organizers[0]
		subs.Organizer = &storage.Organizer{ID: r.ID, EntryID: r.EntryID, CalAddress: r.CalAddress, CN: r.CN}
	}
	for _, r := range attendees {
		subs.Attendees = append(subs.Attendees, storage.Attendee{
			ID: r.ID, EntryID: r.EntryID, CalAddress: r.CalAddress, CN: r.CN, Role: r.Role, PartStat: r.PartStat, RSVP: r.RSVP,
		})
	}
	for _, r := range resources {
		subs.Resources = append(subs.Resources, storage.Resource{ID: r.ID, EntryID: r.EntryID, Text: r.Text})
	}
	return subs, nil
}

// insertOwned creates row after checking that its owning entry exists.
func (s *Store) insertOwned(ctx context.Context, entryID int64, row any, id func() int64) (int64, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entryRow{}).Where("id = ?", entryID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.NewError(storage.TypeConstraint, "owning entry does not exist", nil)
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return 0, err
	}
	return id(), nil
}

func (s *Store) InsertCategory(ctx context.Context, category *storage.Category) (int64, error) {
	row := categoryRow{EntryID: category.EntryID, Text: category.Text, Language: category.Language}
	return s.insertOwned(ctx, row.EntryID, &row, func() int64 { return row.ID })
}

func (s *Store) InsertComment(ctx context.Context, comment *storage.Comment) (int64, error) {
	row := commentRow{EntryID: comment.EntryID, Text: comment.Text, Language: comment.Language}
	return s.insertOwned(ctx, row.EntryID, &row, func() int64 { return row.ID })
}

func (s *Store) InsertAttachment(ctx context.Context, attachment *storage.Attachment) (int64, error) {
	row := attachmentRow{EntryID: attachment.EntryID, URI: attachment.URI, FmtType: attachment.FmtType, Filename: attachment.Filename}
	return s.insertOwned(ctx, row.EntryID, &row, func() int64 { return row.ID })
}

func (s *Store) InsertOrganizer(ctx context.Context, organizer *storage.Organizer) (int64, error) {
	row := organizerRow{EntryID: organizer.EntryID, CalAddress: organizer.CalAddress, CN: organizer.CN}
	return s.insertOwned(ctx, row.EntryID, &row, func() int64 { return row.ID })
}

func (s *Store) InsertAttendee(ctx context.Context, attendee *storage.Attendee) (int64, error) {
	row := attendeeRow{
		EntryID:    attendee.EntryID,
		CalAddress: attendee.CalAddress,
		CN:         attendee.CN,
		Role:       attendee.Role,
		PartStat:   attendee.PartStat,
		RSVP:       attendee.RSVP,
	}
	return s.insertOwned(ctx, row.EntryID, &row, func() int64 { return row.ID })
}

func (s *Store) InsertResource(ctx context.Context, resource *storage.Resource) (int64, error) {
	row := resourceRow{EntryID: resource.EntryID, Text: resource.Text}
	return s.insertOwned(ctx, row.EntryID, &row, func() int64 { return row.ID })
}

func (s *Store) InsertRelation(ctx context.Context, relation *storage.Relation) (int64, error) {
	row := relationRow{EntryID: relation.EntryID, LinkedEntryID: relation.LinkedEntryID, Reltype: relation.Reltype}
	return s.insertOwned(ctx, row.EntryID, &row, func() int64 { return row.ID })
}
