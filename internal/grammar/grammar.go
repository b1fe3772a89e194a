// Package grammar owns the text encoding that turns a structured
// selection into the single free-form message the remote agent parses.
// The bracket tag ([service_id:...], [slot:...]) is the only part the
// agent's parser relies on; the prose exists for transcript readability.
// The exact forms are a wire contract with the agent and must not change
// without a coordinated server-side update.
package grammar

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/receptly/chat-widget/internal/domain"
)

// EncodeServiceSelection encodes the user's chosen services, preserving
// selection order in both the display names and the id tag.
func EncodeServiceSelection(selected []domain.ServiceOption) string {
	names := make([]string, len(selected))
	ids := make([]string, len(selected))
	for i, s := range selected {
		names[i] = s.Name
		ids[i] = s.ID
	}
	// No space before the bracket tag.
	return fmt.Sprintf("I'd like to book: %s[service_id:%s]",
		strings.Join(names, ", "), strings.Join(ids, ","))
}

// EncodeSlotSelection encodes a chosen appointment slot. The prose date
// is formatted from the slot's own date and time, never from today.
func EncodeSlotSelection(slot domain.TimeSlot) (string, error) {
	day, err := time.Parse("2006-01-02", slot.Date)
	if err != nil {
		return "", fmt.Errorf("invalid slot date %q: %w", slot.Date, err)
	}
	clock, err := parseClock(slot.Time)
	if err != nil {
		return "", fmt.Errorf("invalid slot time %q: %w", slot.Time, err)
	}
	return fmt.Sprintf("I'd like to book for %s at %s [slot:%s]",
		day.Format("Monday, January 2"), clock.Format("3:04 PM"), slot.ID), nil
}

// EncodeContactForm encodes contact details as comma-joined
// "Field: value" pairs in fixed order (name, phone, email), skipping
// empty fields. No bracket tag: there is no id to round-trip.
func EncodeContactForm(name, phone, email string) string {
	var parts []string
	if v := strings.TrimSpace(name); v != "" {
		parts = append(parts, "Name: "+v)
	}
	if v := strings.TrimSpace(phone); v != "" {
		parts = append(parts, "Phone: "+v)
	}
	if v := strings.TrimSpace(email); v != "" {
		parts = append(parts, "Email: "+v)
	}
	return strings.Join(parts, ", ")
}

func parseClock(s string) (time.Time, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized clock format")
}

var (
	slotTagPattern    = regexp.MustCompile(`\[slot:([^\]]+)\]`)
	serviceTagPattern = regexp.MustCompile(`\[service_id:([^\]]+)\]`)
)

// Parsed is the structured intent recovered from an encoded message.
type Parsed struct {
	Text      string
	SlotID    string
	ServiceID string
}

// Decode recovers the bracket-tag payloads from a message, mirroring the
// agent-side parser. Used in tests to prove the encoding stays injective.
func Decode(message string) Parsed {
	p := Parsed{Text: message}
	if m := slotTagPattern.FindStringSubmatch(p.Text); m != nil {
		p.SlotID = m[1]
		p.Text = strings.TrimSpace(slotTagPattern.ReplaceAllString(p.Text, ""))
	}
	if m := serviceTagPattern.FindStringSubmatch(p.Text); m != nil {
		p.ServiceID = m[1]
		p.Text = strings.TrimSpace(serviceTagPattern.ReplaceAllString(p.Text, ""))
	}
	return p
}
