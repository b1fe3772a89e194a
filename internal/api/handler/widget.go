package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/receptly/chat-widget/internal/api/response"
	"github.com/receptly/chat-widget/internal/widget"
)

var validate = validator.New()

// WidgetHandler exposes the widget engine to embed hosts. Every endpoint
// that mutates state responds with the fresh view-model so the host can
// render without a follow-up read.
type WidgetHandler struct {
	registry *widget.Registry
}

// NewWidgetHandler creates a new widget handler
func NewWidgetHandler(registry *widget.Registry) *WidgetHandler {
	return &WidgetHandler{registry: registry}
}

type initRequest struct {
	BusinessID string `json:"business_id" validate:"required"`
	ClientID   string `json:"client_id"`
}

// Init creates (or rebinds to) the widget for a client and opens it.
// A client without an id is assigned one; the host persists it.
func (h *WidgetHandler) Init(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	wd, clientID, err := h.registry.GetOrCreate(req.ClientID, req.BusinessID)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := wd.Open(r.Context()); err != nil {
		response.InternalError(w, "failed to open widget")
		return
	}

	response.Created(w, map[string]any{
		"client_id": clientID,
		"snapshot":  wd.Snapshot(),
	})
}

// State returns the current view-model without mutating anything
func (h *WidgetHandler) State(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.lookup(w, r)
	if !ok {
		return
	}
	response.OK(w, wd.Snapshot())
}

// Open makes the widget visible
func (h *WidgetHandler) Open(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := wd.Open(r.Context()); err != nil {
		response.InternalError(w, "failed to open widget")
		return
	}
	response.OK(w, wd.Snapshot())
}

// Close hides the widget
func (h *WidgetHandler) Close(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.lookup(w, r)
	if !ok {
		return
	}
	wd.Close()
	response.OK(w, wd.Snapshot())
}

type messageRequest struct {
	Text string `json:"text" validate:"required"`
}

// Message posts one free-text user message
func (h *WidgetHandler) Message(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	h.respond(w, wd, wd.Send(r.Context(), req.Text))
}

type toggleServiceRequest struct {
	ServiceID string `json:"service_id" validate:"required"`
}

// ToggleService selects or deselects one service option
func (h *WidgetHandler) ToggleService(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req toggleServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	h.respond(w, wd, wd.ToggleService(req.ServiceID))
}

type selectDateRequest struct {
	Date string `json:"date" validate:"required"`
}

// SelectDate switches the slot picker to another date
func (h *WidgetHandler) SelectDate(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req selectDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	h.respond(w, wd, wd.SelectDate(req.Date))
}

type selectSlotRequest struct {
	SlotID string `json:"slot_id" validate:"required"`
}

// SelectSlot chooses a slot on the selected date
func (h *WidgetHandler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req selectSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	h.respond(w, wd, wd.SelectSlot(req.SlotID))
}

type contactFieldRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value"`
}

// ContactField records one contact form field value
func (h *WidgetHandler) ContactField(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req contactFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	h.respond(w, wd, wd.SetContactField(req.Field, req.Value))
}

// Submit completes the active structured surface
func (h *WidgetHandler) Submit(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respond(w, wd, wd.Submit(r.Context()))
}

// Reset discards the conversation and starts a fresh session
func (h *WidgetHandler) Reset(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := wd.Reset(r.Context()); err != nil {
		response.InternalError(w, "failed to reset conversation")
		return
	}
	response.OK(w, wd.Snapshot())
}

func (h *WidgetHandler) lookup(w http.ResponseWriter, r *http.Request) (*widget.Widget, bool) {
	clientID := chi.URLParam(r, "clientID")
	wd, ok := h.registry.Get(clientID)
	if !ok {
		response.NotFound(w, "unknown client")
		return nil, false
	}
	return wd, true
}

// respond maps engine errors onto HTTP statuses. Rejected interactions
// are client errors; a dropped send is a conflict so the host can retry
// after the in-flight message settles.
func (h *WidgetHandler) respond(w http.ResponseWriter, wd *widget.Widget, err error) {
	switch {
	case err == nil:
		response.OK(w, wd.Snapshot())
	case errors.Is(err, widget.ErrSendInFlight):
		response.Conflict(w, err.Error())
	case errors.Is(err, widget.ErrSurfaceMismatch), errors.Is(err, widget.ErrEmptySelection):
		response.BadRequest(w, err.Error())
	default:
		response.BadRequest(w, err.Error())
	}
}

func validationMessage(err error) any {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	errors := make(map[string]string)
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			errors[e.Field()] = "field is required"
		default:
			errors[e.Field()] = "validation failed on " + e.Tag()
		}
	}
	return errors
}
