package storage

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/cyp0633/libjtx/recurrence"
)

const productID = "-//libjtx//Go Journal//EN"

const (
	icalDate     = "20060102"
	icalDateTime = "20060102T150405"
)

// EntryToComponent renders an entry and its sub-properties as a VJOURNAL or VTODO.
func EntryToComponent(e *Entry, subs *SubProperties) *ical.Component {
	comp := ical.NewComponent(string(e.Kind))

	comp.Props.SetText(ical.PropUID, e.UID)
	comp.Props.SetDateTime(ical.PropDateTimeStamp, time.UnixMilli(e.Dtstamp).UTC())
	if e.Created != 0 {
		comp.Props.SetDateTime(ical.PropCreated, time.UnixMilli(e.Created).UTC())
	}
	if e.LastModified != 0 {
		comp.Props.SetDateTime(ical.PropLastModified, time.UnixMilli(e.LastModified).UTC())
	}
	sequence := ical.NewProp(ical.PropSequence)
	sequence.Value = strconv.FormatInt(e.Sequence, 10)
	comp.Props.Set(sequence)

	if e.Summary != "" {
		comp.Props.SetText(ical.PropSummary, e.Summary)
	}
	if e.Description != "" {
		comp.Props.SetText(ical.PropDescription, e.Description)
	}
	if e.Status != "" {
		comp.Props.SetText(ical.PropStatus, e.Status)
	}
	if e.Kind == KindTodo && e.PercentComplete != nil {
		percent := ical.NewProp(ical.PropPercentComplete)
		percent.Value = strconv.Itoa(*e.PercentComplete)
		comp.Props.Set(percent)
	}

	if e.Dtstart != nil {
		comp.Props.Set(dateProp(ical.PropDateTimeStart, *e.Dtstart, e.DtstartTimezone))
	}
	if e.Kind == KindTodo && e.Due != nil {
		comp.Props.Set(dateProp(ical.PropDue, *e.Due, e.DueTimezone))
	}

	recurrence.ApplyInfo(comp, recurrence.Info{
		RRule:        e.RRule,
		RDate:        e.RDate,
		ExDate:       e.ExDate,
		RecurrenceID: e.RecurID,
	}, e.DtstartTimezone)

	if subs != nil {
		addSubProperties(comp, subs)
	}
	return comp
}

func addSubProperties(comp *ical.Component, subs *SubProperties) {
	for _, c := range subs.Categories {
		prop := ical.NewProp(ical.PropCategories)
		prop.SetText(c.Text)
		setParam(prop, "LANGUAGE", c.Language)
		comp.Props.Add(prop)
	}
	for _, c := range subs.Comments {
		prop := ical.NewProp(ical.PropComment)
		prop.SetText(c.Text)
		setParam(prop, "LANGUAGE", c.Language)
		comp.Props.Add(prop)
	}
	for _, a := range subs.Attachments {
		prop := ical.NewProp(ical.PropAttach)
		prop.Value = a.URI
		setParam(prop, "FMTTYPE", a.FmtType)
		setParam(prop, "FILENAME", a.Filename)
		comp.Props.Add(prop)
	}
	if org := subs.Organizer; org != nil {
		prop := ical.NewProp(ical.PropOrganizer)
		prop.Value = org.CalAddress
		setParam(prop, "CN", org.CN)
		comp.Props.Set(prop)
	}
	for _, a := range subs.Attendees {
		prop := ical.NewProp(ical.PropAttendee)
		prop.Value = a.CalAddress
		setParam(prop, "CN", a.CN)
		setParam(prop, "ROLE", a.Role)
		setParam(prop, "PARTSTAT", a.PartStat)
		if a.RSVP {
			prop.Params.Set("RSVP", "TRUE")
		}
		comp.Props.Add(prop)
	}
	for _, r := range subs.Resources {
		prop := ical.NewProp(ical.PropResources)
		prop.SetText(r.Text)
		comp.Props.Add(prop)
	}
}

func setParam(prop *ical.Prop, name, value string) {
	if value != "" {
		prop.Params.Set(name, value)
	}
}

// dateProp writes a DTSTART/DUE style value following the entry's timezone mode.
func dateProp(name string, ms int64, tz string) *ical.Prop {
	prop := ical.NewProp(name)
	t := time.UnixMilli(ms).In(recurrence.Location(tz))
	switch tz {
	case recurrence.TZAllDay:
		prop.Params.Set(ical.ParamValue, string(ical.ValueDate))
		prop.Value = t.Format(icalDate)
	case "":
		prop.Value = t.Format(icalDateTime)
	case "UTC":
		prop.Value = t.Format(icalDateTime) + "Z"
	default:
		prop.Params.Set(ical.ParamTimezoneID, tz)
		prop.Value = t.Format(icalDateTime)
	}
	return prop
}

// readDateProp is the inverse of dateProp: it returns the timestamp and the timezone mode.
func readDateProp(prop *ical.Prop) (int64, string, error) {
	if strings.EqualFold(prop.Params.Get(ical.ParamValue), string(ical.ValueDate)) || len(prop.Value) == len(icalDate) {
		t, err := time.ParseInLocation(icalDate, prop.Value, time.UTC)
		return t.UnixMilli(), recurrence.TZAllDay, err
	}
	if strings.HasSuffix(prop.Value, "Z") {
		t, err := time.ParseInLocation(icalDateTime+"Z", prop.Value, time.UTC)
		return t.UnixMilli(), "UTC", err
	}
	if tzid := prop.Params.Get(ical.ParamTimezoneID); tzid != "" {
		t, err := time.ParseInLocation(icalDateTime, prop.Value, recurrence.Location(tzid))
		return t.UnixMilli(), tzid, err
	}
	t, err := time.ParseInLocation(icalDateTime, prop.Value, time.UTC)
	return t.UnixMilli(), "", err
}

// ComponentToEntry reads a VJOURNAL or VTODO. Ids are left unset; a missing UID is generated.
func ComponentToEntry(comp *ical.Component) (*Entry, *SubProperties, error) {
	if comp.Name != ical.CompJournal && comp.Name != ical.CompToDo {
		return nil, nil, NewError(TypeInvalidInput, fmt.Sprintf("unsupported component %s", comp.Name), nil)
	}

	e := &Entry{Kind: Kind(comp.Name)}
	var err error
	if e.UID, err = comp.Props.Text(ical.PropUID); err != nil {
		return nil, nil, NewError(TypeInvalidInput, "invalid UID", err)
	}
	if e.UID == "" {
		e.UID = uuid.NewString()
	}
	e.Summary, _ = comp.Props.Text(ical.PropSummary)
	e.Description, _ = comp.Props.Text(ical.PropDescription)
	e.Status, _ = comp.Props.Text(ical.PropStatus)

	if t, err := comp.Props.DateTime(ical.PropDateTimeStamp, time.UTC); err == nil && !t.IsZero() {
		e.Dtstamp = t.UnixMilli()
	}
	if t, err := comp.Props.DateTime(ical.PropCreated, time.UTC); err == nil && !t.IsZero() {
		e.Created = t.UnixMilli()
	}
	if t, err := comp.Props.DateTime(ical.PropLastModified, time.UTC); err == nil && !t.IsZero() {
		e.LastModified = t.UnixMilli()
	}
	if prop := comp.Props.Get(ical.PropSequence); prop != nil {
		if e.Sequence, err = strconv.ParseInt(strings.TrimSpace(prop.Value), 10, 64); err != nil {
			return nil, nil, NewError(TypeInvalidInput, "invalid SEQUENCE", err)
		}
	}
	if prop := comp.Props.Get(ical.PropPercentComplete); prop != nil && e.Kind == KindTodo {
		percent, err := strconv.Atoi(strings.TrimSpace(prop.Value))
		if err != nil {
			return nil, nil, NewError(TypeInvalidInput, "invalid PERCENT-COMPLETE", err)
		}
		e.PercentComplete = &percent
	}

	if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
		ms, tz, err := readDateProp(prop)
		if err != nil {
			return nil, nil, NewError(TypeInvalidInput, "invalid DTSTART", err)
		}
		e.Dtstart, e.DtstartTimezone = &ms, tz
	}
	if prop := comp.Props.Get(ical.PropDue); prop != nil && e.Kind == KindTodo {
		ms, tz, err := readDateProp(prop)
		if err != nil {
			return nil, nil, NewError(TypeInvalidInput, "invalid DUE", err)
		}
		e.Due, e.DueTimezone = &ms, tz
	}

	info := recurrence.InfoFromComponent(comp)
	e.RRule, e.RDate, e.ExDate, e.RecurID = info.RRule, info.RDate, info.ExDate, info.RecurrenceID

	return e, readSubProperties(comp), nil
}

func readSubProperties(comp *ical.Component) *SubProperties {
	subs := &SubProperties{}
	for _, prop := range comp.Props.Values(ical.PropCategories) {
		text, _ := prop.Text()
		subs.Categories = append(subs.Categories, Category{Text: text, Language: prop.Params.Get("LANGUAGE")})
	}
	for _, prop := range comp.Props.Values(ical.PropComment) {
		text, _ := prop.Text()
		subs.Comments = append(subs.Comments, Comment{Text: text, Language: prop.Params.Get("LANGUAGE")})
	}
	for _, prop := range comp.Props.Values(ical.PropAttach) {
		subs.Attachments = append(subs.Attachments, Attachment{
			URI:      prop.Value,
			FmtType:  prop.Params.Get("FMTTYPE"),
			Filename: prop.Params.Get("FILENAME"),
		})
	}
	if prop := comp.Props.Get(ical.PropOrganizer); prop != nil {
		subs.Organizer = &Organizer{CalAddress: prop.Value, CN: prop.Params.Get("CN")}
	}
	for _, prop := range comp.Props.Values(ical.PropAttendee) {
		subs.Attendees = append(subs.Attendees, Attendee{
			CalAddress: prop.Value,
			CN:         prop.Params.Get("CN"),
			Role:       prop.Params.Get("ROLE"),
			PartStat:   prop.Params.Get("PARTSTAT"),
			RSVP:       strings.EqualFold(prop.Params.Get("RSVP"), "TRUE"),
		})
	}
	for _, prop := range comp.Props.Values(ical.PropResources) {
		text, _ := prop.Text()
		subs.Resources = append(subs.Resources, Resource{Text: text})
	}
	return subs
}

// EncodeICS wraps components in a VCALENDAR and serializes it.
func EncodeICS(comps ...*ical.Component) (string, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	for _, comp := range comps {
		cal.Children = append(cal.Children, comp)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}

// DecodeICS parses a calendar and returns its VJOURNAL and VTODO components.
func DecodeICS(ics string) ([]*ical.Component, error) {
	cal, err := ical.NewDecoder(strings.NewReader(ics)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar: %w", err)
	}

	var comps []*ical.Component
	for _, child := range cal.Children {
		if child.Name == ical.CompJournal || child.Name == ical.CompToDo {
			comps = append(comps, child)
		}
	}
	if len(comps) == 0 {
		return nil, NewError(TypeInvalidInput, "no journals or to-dos found in calendar", nil)
	}
	return comps, nil
}
