package sqlite

import (
	"github.com/cyp0633/libjtx/recurrence"
	"github.com/cyp0633/libjtx/storage"
)

type entryRow struct {
	ID                        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	UID                       string `gorm:"column:uid;size:255;not null;index"`
	Component                 string `gorm:"column:component;size:16;not null"`
	CollectionID              int64  `gorm:"column:collection_id;index"`
	Summary                   string `gorm:"column:summary;type:text"`
	Description               string `gorm:"column:description;type:text"`
	Status                    string `gorm:"column:status;size:32"`
	PercentComplete           *int   `gorm:"column:percent_complete"`
	Dtstart                   *int64 `gorm:"column:dtstart"`
	DtstartTimezone           string `gorm:"column:dtstart_timezone;size:64"`
	Due                       *int64 `gorm:"column:due"`
	DueTimezone               string `gorm:"column:due_timezone;size:64"`
	RRule                     string `gorm:"column:rrule;type:text;not null;default:''"`
	RDate                     string `gorm:"column:rdate;type:text;not null;default:''"`
	ExDate                    string `gorm:"column:exdate;type:text;not null;default:''"`
	RecurID                   string `gorm:"column:recurid;size:32"`
	RecurOriginalID           *int64 `gorm:"column:recur_original_id;index"`
	IsLinkedRecurringInstance bool   `gorm:"column:is_linked_recurring_instance;not null"`
	Sequence                  int64  `gorm:"column:sequence;not null"`
	Dirty                     bool   `gorm:"column:dirty;not null"`
	Deleted                   bool   `gorm:"column:deleted;not null"`
	Dtstamp                   int64  `gorm:"column:dtstamp;not null"`
	Created                   int64  `gorm:"column:created;not null"`
	LastModified              int64  `gorm:"column:last_modified;not null"`
	Filename                  string `gorm:"column:filename;size:255"`
	ETag                      string `gorm:"column:etag;size:255"`
	ScheduleTag               string `gorm:"column:schedule_tag;size:255"`
}

func (entryRow) TableName() string {
	return "icalobject"
}

type collectionRow struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name  string `gorm:"column:name;size:255"`
	Local bool   `gorm:"column:local;not null"`
}

func (collectionRow) TableName() string {
	return "collection"
}

type relationRow struct {
	ID            int64  `gorm:"column:id;primaryKey;autoIncrement"`
	EntryID       int64  `gorm:"column:entry_id;not null;index"`
	LinkedEntryID int64  `gorm:"column:linked_entry_id;not null;index"`
	Reltype       string `gorm:"column:reltype;size:16"`
}

func (relationRow) TableName() string {
	return "relatedto"
}

type categoryRow struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	EntryID  int64  `gorm:"column:entry_id;not null;index"`
	Text     string `gorm:"column:text;type:text"`
	Language string `gorm:"column:language;size:32"`
}

func (categoryRow) TableName() string {
	return "category"
}

type commentRow struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	EntryID  int64  `gorm:"column:entry_id;not null;index"`
	Text     string `gorm:"column:text;type:text"`
	Language string `gorm:"column:language;size:32"`
}

func (commentRow) TableName() string {
	return "comment"
}

type attachmentRow struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	EntryID  int64  `gorm:"column:entry_id;not null;index"`
	URI      string `gorm:"column:uri;type:text"`
	FmtType  string `gorm:"column:fmttype;size:128"`
	Filename string `gorm:"column:filename;size:255"`
}

func (attachmentRow) TableName() string {
	return "attachment"
}

type organizerRow struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	EntryID    int64  `gorm:"column:entry_id;not null;index"`
	CalAddress string `gorm:"column:caladdress;size:320"`
	CN         string `gorm:"column:cn;size:255"`
}

func (organizerRow) TableName() string {
	return "organizer"
}

type attendeeRow struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	EntryID    int64  `gorm:"column:entry_id;not null;index"`
	CalAddress string `gorm:"column:caladdress;size:320"`
	CN         string `gorm:"column:cn;size:255"`
	Role       string `gorm:"column:role;size:32"`
	PartStat   string `gorm:"column:partstat;size:32"`
	RSVP       bool   `gorm:"column:rsvp;not null"`
}

func (attendeeRow) TableName() string {
	return "attendee"
}

type resourceRow struct {
	ID      int64  `gorm:"column:id;primaryKey;autoIncrement"`
	EntryID int64  `gorm:"column:entry_id;not null;index"`
	Text    string `gorm:"column:text;type:text"`
}

func (resourceRow) TableName() string {
	return "resource"
}

// ownedModels lists every model whose rows belong to a single entry.
func ownedModels() []any {
	return []any{&categoryRow{}, &commentRow{}, &attachmentRow{}, &organizerRow{}, &attendeeRow{}, &resourceRow{}}
}

func allModels() []any {
	return append([]any{&entryRow{}, &collectionRow{}, &relationRow{}}, ownedModels()...)
}

func entryToRow(e *storage.Entry) entryRow {
	return entryRow{
		ID:                        e.ID,
		UID:                       e.UID,
		Component:                 string(e.Kind),
		CollectionID:              e.Collection,
		Summary:                   e.Summary,
		Description:               e.Description,
		Status:                    e.Status,
		PercentComplete:           e.PercentComplete,
		Dtstart:                   e.Dtstart,
		DtstartTimezone:           e.DtstartTimezone,
		Due:                       e.Due,
		DueTimezone:               e.DueTimezone,
		RRule:                     e.RRule,
		RDate:                     recurrence.FormatDateList(e.RDate),
		ExDate:                    recurrence.FormatDateList(e.ExDate),
		RecurID:                   e.RecurID,
		RecurOriginalID:           e.RecurOriginalID,
		IsLinkedRecurringInstance: e.IsLinkedRecurringInstance,
		Sequence:                  e.Sequence,
		Dirty:                     e.Dirty,
		Deleted:                   e.Deleted,
		Dtstamp:                   e.Dtstamp,
		Created:                   e.Created,
		LastModified:              e.LastModified,
		Filename:                  e.Filename,
		ETag:                      e.ETag,
		ScheduleTag:               e.ScheduleTag,
	}
}

func (r *entryRow) toEntry() *storage.Entry {
	return &storage.Entry{
		ID:                        r.ID,
		UID:                       r.UID,
		Kind:                      storage.Kind(r.Component),
		Collection:                r.CollectionID,
		Summary:                   r.Summary,
		Description:               r.Description,
		Status:                    r.Status,
		PercentComplete:           r.PercentComplete,
		Dtstart:                   r.Dtstart,
		DtstartTimezone:           r.DtstartTimezone,
		Due:                       r.Due,
		DueTimezone:               r.DueTimezone,
		RRule:                     r.RRule,
		RDate:                     recurrence.ParseDateList(r.RDate),
		ExDate:                    recurrence.ParseDateList(r.ExDate),
		RecurID:                   r.RecurID,
		RecurOriginalID:           r.RecurOriginalID,
		IsLinkedRecurringInstance: r.IsLinkedRecurringInstance,
		Sequence:                  r.Sequence,
		Dirty:                     r.Dirty,
		Deleted:                   r.Deleted,
		Dtstamp:                   r.Dtstamp,
		Created:                   r.Created,
		LastModified:              r.LastModified,
		Filename:                  r.Filename,
		ETag:                      r.ETag,
		ScheduleTag:               r.ScheduleTag,
	}
}
