package widget

import (
	"sort"
	"strings"
	"time"

	"github.com/receptly/chat-widget/internal/domain"
)

// pendingSelection is the ephemeral state of the active structured
// surface. It is cleared on submit and discarded whenever a new
// directive replaces the surface.
type pendingSelection struct {
	serviceIDs   []string // selection order preserved
	selectedDate string
	slotID       string
	contact      map[string]string
}

func newPending() pendingSelection {
	return pendingSelection{contact: make(map[string]string)}
}

// RenderedMessage is one transcript entry with its safe-HTML rendering,
// produced once on append and never recomputed.
type RenderedMessage struct {
	Role      domain.MessageRole `json:"role"`
	Text      string             `json:"text"`
	HTML      string             `json:"html"`
	Timestamp time.Time          `json:"timestamp"`
}

// ServiceSelectView is the declarative state of the service picker
type ServiceSelectView struct {
	Services    []domain.ServiceOption `json:"services"`
	MultiSelect bool                   `json:"multi_select"`
	SelectedIDs []string               `json:"selected_ids"`
	CanSubmit   bool                   `json:"can_submit"`
}

// DateTimePickerView is the declarative state of the slot picker. Slots
// holds only the slots for the selected date; Empty marks a date with no
// slots so the host renders an explicit empty state, not a blank list.
type DateTimePickerView struct {
	Dates          []string          `json:"dates"`
	SelectedDate   string            `json:"selected_date"`
	Slots          []domain.TimeSlot `json:"slots"`
	SelectedSlotID string            `json:"selected_slot_id"`
	Empty          bool              `json:"empty"`
	CanSubmit      bool              `json:"can_submit"`
}

// ContactFormView is the declarative state of the contact form
type ContactFormView struct {
	Fields    []string          `json:"fields"`
	Values    map[string]string `json:"values"`
	CanSubmit bool              `json:"can_submit"`
}

// Snapshot is the widget's complete declarative view-model. The host
// renders it as-is; Revision increases on every visible change so the
// host knows when to auto-scroll.
type Snapshot struct {
	Open         bool              `json:"open"`
	BusinessName string            `json:"business_name,omitempty"`
	Sending      bool              `json:"sending"`
	InputType    domain.InputType  `json:"input_type"`
	Messages     []RenderedMessage `json:"messages"`
	Revision     uint64            `json:"revision"`

	ServiceSelect  *ServiceSelectView  `json:"service_select,omitempty"`
	DateTimePicker *DateTimePickerView `json:"datetime_picker,omitempty"`
	ContactForm    *ContactFormView    `json:"contact_form,omitempty"`
}

// slotDates returns the distinct dates present among slots, sorted
// ascending. ISO dates sort lexicographically.
func slotDates(slots []domain.TimeSlot) []string {
	seen := make(map[string]bool)
	var dates []string
	for _, s := range slots {
		if s.Date != "" && !seen[s.Date] {
			seen[s.Date] = true
			dates = append(dates, s.Date)
		}
	}
	sort.Strings(dates)
	return dates
}

// defaultPickerDate is the earliest date with a slot, falling back to
// min_date when no slots exist at all.
func defaultPickerDate(cfg domain.InputConfig) string {
	if dates := slotDates(cfg.Slots); len(dates) > 0 {
		return dates[0]
	}
	return cfg.MinDate
}

func slotsForDate(slots []domain.TimeSlot, date string) []domain.TimeSlot {
	var out []domain.TimeSlot
	for _, s := range slots {
		if s.Date == date {
			out = append(out, s)
		}
	}
	return out
}

// renderedFields normalizes the contact form field list to the known
// fields in their fixed order. An absent list falls back to the server's
// historical default of name and phone.
func renderedFields(cfg domain.InputConfig) []string {
	requested := make(map[string]bool)
	for _, f := range cfg.Fields {
		requested[f] = true
	}
	if len(requested) == 0 {
		return []string{domain.FieldName, domain.FieldPhone}
	}
	var out []string
	for _, f := range []string{domain.FieldName, domain.FieldPhone, domain.FieldEmail} {
		if requested[f] {
			out = append(out, f)
		}
	}
	return out
}

func anyNonBlank(values map[string]string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
