package storage

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/cyp0633/libjtx/recurrence"
)

// Validate checks the invariants every persisted entry must satisfy.
func (e *Entry) Validate() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.UID, validation.Required),
		validation.Field(&e.Kind, validation.Required, validation.In(KindJournal, KindTodo)),
		validation.Field(&e.Due, validation.When(e.Kind != KindTodo, validation.Nil)),
		validation.Field(&e.DtstartTimezone, validation.By(validTimezone)),
		validation.Field(&e.DueTimezone, validation.By(validTimezone)),
		validation.Field(&e.PercentComplete, validation.Min(0), validation.Max(100)),
		// only the original carries recurrence data
		validation.Field(&e.RRule, validation.When(e.IsLinkedRecurringInstance, validation.Empty)),
		validation.Field(&e.RDate, validation.When(e.IsLinkedRecurringInstance, validation.Empty)),
		validation.Field(&e.ExDate, validation.When(e.IsLinkedRecurringInstance, validation.Empty)),
		validation.Field(&e.RecurOriginalID, validation.When(e.IsLinkedRecurringInstance, validation.NotNil)),
	)
}

func validTimezone(value interface{}) error {
	tz, _ := value.(string)
	if tz == "" || tz == recurrence.TZAllDay {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("unknown timezone %q", tz)
	}
	return nil
}
