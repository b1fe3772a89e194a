// Package widget is the chat widget engine: the structured-input state
// machine, the transcript, and the shell lifecycle. One Widget is the
// explicit handle an embed host holds for one customer's conversation
// with one business.
package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/receptly/chat-widget/internal/domain"
	"github.com/receptly/chat-widget/internal/grammar"
	"github.com/receptly/chat-widget/internal/render"
	"github.com/receptly/chat-widget/internal/session"
	"github.com/receptly/chat-widget/internal/transport"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSendInFlight rejects a send while another is outstanding.
	// Sends are dropped, never queued.
	ErrSendInFlight = errors.New("a message is already in flight")

	// ErrSurfaceMismatch rejects an operation that does not belong to
	// the active input surface.
	ErrSurfaceMismatch = errors.New("operation not valid for the active input surface")

	// ErrEmptySelection rejects a submission with nothing selected
	ErrEmptySelection = errors.New("selection is empty")
)

const (
	fallbackGreeting = "Hi there! How can I help you today?"
	sendFailureReply = "I'm sorry, I'm having trouble connecting right now. Please try again in a moment."
)

// Agent is the conversation transport consumed by the engine
type Agent interface {
	FetchHistory(ctx context.Context, businessID, sessionID string) (*transport.HistoryResponse, error)
	FetchGreeting(ctx context.Context, businessID, sessionID string) (*transport.GreetingResponse, error)
	PostMessage(ctx context.Context, businessID, sessionID, text string) (*transport.ChatResponse, error)
	DeleteSession(ctx context.Context, businessID, sessionID string) error
}

// Widget is the conversation engine for one (business, customer) pair.
// All state is guarded by mu; network calls run outside the lock and
// re-enter to apply their results, so guard flags keep their strict
// ordering under concurrent host events.
type Widget struct {
	businessID string
	sessions   *session.Manager
	agent      Agent

	mu           sync.Mutex
	open         bool
	activated    bool // greeting fetched for the current session
	activating   bool
	sending      bool
	epoch        uint64 // bumped on reset; in-flight results from older epochs are dropped
	sessionID    string
	businessName string
	directive    domain.InputDirective
	pending      pendingSelection
	transcript   []RenderedMessage
	revision     uint64
}

// New creates a widget engine for a business
func New(businessID string, sessions *session.Manager, agent Agent) *Widget {
	return &Widget{
		businessID: businessID,
		sessions:   sessions,
		agent:      agent,
		directive:  domain.TextDirective(),
		pending:    newPending(),
	}
}

// Open makes the widget visible. The first open with an empty transcript
// activates the session: history is rehydrated wholesale, or a greeting
// is fetched for a fresh conversation.
func (w *Widget) Open(ctx context.Context) error {
	w.mu.Lock()
	w.open = true
	w.revision++
	activate := !w.activated && !w.activating && len(w.transcript) == 0
	if activate {
		w.activating = true
	}
	epoch := w.epoch
	w.mu.Unlock()

	if !activate {
		return nil
	}
	return w.activate(ctx, epoch)
}

// Close hides the widget. An in-flight send is not cancelled; its
// response still lands in the hidden transcript.
func (w *Widget) Close() {
	w.mu.Lock()
	w.open = false
	w.revision++
	w.mu.Unlock()
}

// Send posts a free-text user message. Rejected while a structured
// surface is active (the text surface is hidden) or while another send
// is in flight.
func (w *Widget) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptySelection
	}

	w.mu.Lock()
	if w.directive.Type != domain.InputText {
		w.mu.Unlock()
		return ErrSurfaceMismatch
	}
	if w.sending {
		w.mu.Unlock()
		return ErrSendInFlight
	}
	w.sending = true
	w.appendLocked(domain.RoleUser, text)
	sessionID := w.sessionID
	epoch := w.epoch
	w.mu.Unlock()

	if sessionID == "" {
		id, err := w.sessions.GetOrCreate(ctx, w.businessID)
		if err != nil {
			w.mu.Lock()
			w.sending = false
			w.appendLocked(domain.RoleAssistant, sendFailureReply)
			w.mu.Unlock()
			return err
		}
		sessionID = id
		w.mu.Lock()
		w.sessionID = id
		w.mu.Unlock()
	}

	return w.post(ctx, epoch, sessionID, text)
}

// Submit completes the active structured surface: the selection is
// encoded as one text message, the pending state is cleared, the surface
// returns to free text, and the message is posted exactly as if typed.
func (w *Widget) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.sending {
		w.mu.Unlock()
		return ErrSendInFlight
	}

	var text string
	switch w.directive.Type {
	case domain.InputServiceSelect:
		if len(w.pending.serviceIDs) == 0 {
			w.mu.Unlock()
			return ErrEmptySelection
		}
		text = grammar.EncodeServiceSelection(w.selectedServicesLocked())

	case domain.InputDateTimePicker:
		if w.pending.slotID == "" {
			w.mu.Unlock()
			return ErrEmptySelection
		}
		slot, ok := w.findSlotLocked(w.pending.slotID)
		if !ok {
			w.mu.Unlock()
			return fmt.Errorf("selected slot %q no longer offered", w.pending.slotID)
		}
		encoded, err := grammar.EncodeSlotSelection(slot)
		if err != nil {
			w.mu.Unlock()
			return err
		}
		text = encoded

	case domain.InputContactForm:
		text = grammar.EncodeContactForm(
			w.pending.contact[domain.FieldName],
			w.pending.contact[domain.FieldPhone],
			w.pending.contact[domain.FieldEmail],
		)
		if text == "" {
			w.mu.Unlock()
			return ErrEmptySelection
		}

	default:
		w.mu.Unlock()
		return ErrSurfaceMismatch
	}

	w.directive = domain.TextDirective()
	w.pending = newPending()
	w.sending = true
	w.appendLocked(domain.RoleUser, text)
	sessionID := w.sessionID
	epoch := w.epoch
	w.mu.Unlock()

	return w.post(ctx, epoch, sessionID, text)
}

// ToggleService selects or deselects a service. Single-select surfaces
// behave as radio buttons.
func (w *Widget) ToggleService(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.directive.Type != domain.InputServiceSelect {
		return ErrSurfaceMismatch
	}
	if _, ok := w.findServiceLocked(id); !ok {
		return fmt.Errorf("unknown service %q", id)
	}

	for i, sel := range w.pending.serviceIDs {
		if sel == id {
			w.pending.serviceIDs = append(w.pending.serviceIDs[:i], w.pending.serviceIDs[i+1:]...)
			w.revision++
			return nil
		}
	}

	if w.directive.Config.MultiSelect {
		w.pending.serviceIDs = append(w.pending.serviceIDs, id)
	} else {
		w.pending.serviceIDs = []string{id}
	}
	w.revision++
	return nil
}

// SelectDate switches the visible slot list to another date, clearing
// any prior slot choice and disabling submission until a slot on the new
// date is picked.
func (w *Widget) SelectDate(date string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.directive.Type != domain.InputDateTimePicker {
		return ErrSurfaceMismatch
	}
	w.pending.selectedDate = date
	w.pending.slotID = ""
	w.revision++
	return nil
}

// SelectSlot chooses a concrete slot on the currently selected date
func (w *Widget) SelectSlot(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.directive.Type != domain.InputDateTimePicker {
		return ErrSurfaceMismatch
	}
	slot, ok := w.findSlotLocked(id)
	if !ok {
		return fmt.Errorf("unknown slot %q", id)
	}
	if slot.Date != w.pending.selectedDate {
		return fmt.Errorf("slot %q is not on the selected date", id)
	}
	w.pending.slotID = id
	w.revision++
	return nil
}

// SetContactField records one contact form field value
func (w *Widget) SetContactField(field, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.directive.Type != domain.InputContactForm {
		return ErrSurfaceMismatch
	}
	for _, f := range renderedFields(w.directive.Config) {
		if f == field {
			w.pending.contact[field] = value
			w.revision++
			return nil
		}
	}
	return fmt.Errorf("field %q is not part of this form", field)
}

// Reset discards the conversation: best-effort server-side delete,
// unconditional identity rotation, wholesale local clear. If the widget
// is open, a fresh greeting is fetched so the surface never shows an
// empty conversation.
func (w *Widget) Reset(ctx context.Context) error {
	w.mu.Lock()
	oldSession := w.sessionID
	wasOpen := w.open
	w.mu.Unlock()

	if oldSession != "" {
		if err := w.agent.DeleteSession(ctx, w.businessID, oldSession); err != nil {
			// Swallowed: the user-perceived reset must be unconditional.
			log.Warn().Err(err).
				Str("business_id", w.businessID).
				Msg("failed to delete server-side session")
		}
	}

	newID, err := w.sessions.Rotate(ctx, w.businessID)
	if err != nil {
		return fmt.Errorf("failed to rotate session: %w", err)
	}

	w.mu.Lock()
	w.epoch++
	w.sessionID = newID
	w.transcript = nil
	w.directive = domain.TextDirective()
	w.pending = newPending()
	w.sending = false
	w.activated = false
	w.activating = wasOpen
	w.revision++
	epoch := w.epoch
	w.mu.Unlock()

	if !wasOpen {
		return nil
	}
	return w.activate(ctx, epoch)
}

// Snapshot returns the current declarative view-model
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := Snapshot{
		Open:         w.open,
		BusinessName: w.businessName,
		Sending:      w.sending,
		InputType:    w.directive.Type,
		Messages:     append([]RenderedMessage(nil), w.transcript...),
		Revision:     w.revision,
	}

	cfg := w.directive.Config
	switch w.directive.Type {
	case domain.InputServiceSelect:
		snap.ServiceSelect = &ServiceSelectView{
			Services:    cfg.Services,
			MultiSelect: cfg.MultiSelect,
			SelectedIDs: append([]string(nil), w.pending.serviceIDs...),
			CanSubmit:   len(w.pending.serviceIDs) > 0,
		}
	case domain.InputDateTimePicker:
		slots := slotsForDate(cfg.Slots, w.pending.selectedDate)
		snap.DateTimePicker = &DateTimePickerView{
			Dates:          slotDates(cfg.Slots),
			SelectedDate:   w.pending.selectedDate,
			Slots:          slots,
			SelectedSlotID: w.pending.slotID,
			Empty:          len(slots) == 0,
			CanSubmit:      w.pending.slotID != "",
		}
	case domain.InputContactForm:
		values := make(map[string]string, len(w.pending.contact))
		for k, v := range w.pending.contact {
			values[k] = v
		}
		snap.ContactForm = &ContactFormView{
			Fields:    renderedFields(cfg),
			Values:    values,
			CanSubmit: anyNonBlank(values),
		}
	}
	return snap
}

// BusinessID returns the business this widget converses for
func (w *Widget) BusinessID() string {
	return w.businessID
}

// SessionID returns the current session id, or "" before activation
func (w *Widget) SessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

// activate resolves the session id, rehydrates the transcript from
// server history, and falls back to a greeting for fresh or unreachable
// conversations. Results from a stale epoch (reset mid-flight) are
// dropped.
func (w *Widget) activate(ctx context.Context, epoch uint64) error {
	sessionID, err := w.sessions.GetOrCreate(ctx, w.businessID)
	if err != nil {
		w.mu.Lock()
		w.activating = false
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	if w.epoch != epoch {
		w.activating = false
		w.mu.Unlock()
		return nil
	}
	w.sessionID = sessionID
	w.mu.Unlock()

	hist, err := w.agent.FetchHistory(ctx, w.businessID, sessionID)
	if err == nil && len(hist.Messages) > 0 {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.epoch != epoch {
			w.activating = false
			return nil
		}
		// Full rehydrate in original order, never a partial merge.
		w.transcript = w.transcript[:0]
		for _, m := range hist.Messages {
			w.appendMessageLocked(m)
		}
		w.activated = true
		w.activating = false
		return nil
	}
	if err != nil {
		// Recoverable: continue as a fresh, empty conversation.
		log.Warn().Err(err).Str("business_id", w.businessID).Msg("failed to fetch history")
	}

	greeting, gerr := w.agent.FetchGreeting(ctx, w.businessID, sessionID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.epoch != epoch {
		w.activating = false
		return nil
	}
	if gerr != nil {
		log.Warn().Err(gerr).Str("business_id", w.businessID).Msg("failed to fetch greeting")
		w.appendLocked(domain.RoleAssistant, fallbackGreeting)
	} else {
		if greeting.BusinessName != "" {
			w.businessName = greeting.BusinessName
		}
		w.appendLocked(domain.RoleAssistant, greeting.Message)
	}
	w.activated = true
	w.activating = false
	return nil
}

// post delivers one outbound message and applies the agent's reply. A
// transport failure degrades to an apologetic assistant message and the
// text surface; it is not an error to the caller.
func (w *Widget) post(ctx context.Context, epoch uint64, sessionID, text string) error {
	resp, err := w.agent.PostMessage(ctx, w.businessID, sessionID, text)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.epoch != epoch {
		// Conversation was reset while this was in flight.
		return nil
	}
	w.sending = false

	if err != nil {
		log.Error().Err(err).Str("business_id", w.businessID).Msg("failed to post message")
		w.appendLocked(domain.RoleAssistant, sendFailureReply)
		w.directive = domain.TextDirective()
		return nil
	}

	w.appendLocked(domain.RoleAssistant, resp.Message)
	w.applyDirectiveLocked(domain.InputDirective{
		Type:   domain.ParseInputType(resp.InputType),
		Config: resp.InputConfig,
	})
	return nil
}

// applyDirectiveLocked installs the next input surface, discarding any
// pending selection left from a previous activation.
func (w *Widget) applyDirectiveLocked(d domain.InputDirective) {
	if d.Type == domain.InputText {
		d = domain.TextDirective()
	}
	w.directive = d
	w.pending = newPending()
	if d.Type == domain.InputDateTimePicker {
		w.pending.selectedDate = defaultPickerDate(d.Config)
	}
	w.revision++
}

func (w *Widget) appendLocked(role domain.MessageRole, text string) {
	w.appendMessageLocked(domain.Message{Role: role, Content: text, Timestamp: time.Now()})
}

func (w *Widget) appendMessageLocked(m domain.Message) {
	w.transcript = append(w.transcript, RenderedMessage{
		Role:      m.Role,
		Text:      m.Content,
		HTML:      render.Format(m.Content),
		Timestamp: m.Timestamp,
	})
	w.revision++
}

func (w *Widget) findServiceLocked(id string) (domain.ServiceOption, bool) {
	for _, s := range w.directive.Config.Services {
		if s.ID == id {
			return s, true
		}
	}
	return domain.ServiceOption{}, false
}

func (w *Widget) findSlotLocked(id string) (domain.TimeSlot, bool) {
	for _, s := range w.directive.Config.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return domain.TimeSlot{}, false
}

func (w *Widget) selectedServicesLocked() []domain.ServiceOption {
	out := make([]domain.ServiceOption, 0, len(w.pending.serviceIDs))
	for _, id := range w.pending.serviceIDs {
		if s, ok := w.findServiceLocked(id); ok {
			out = append(out, s)
		}
	}
	return out
}
