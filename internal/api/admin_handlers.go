package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/broadcast-mailer/internal/domain"
	"github.com/ignite/broadcast-mailer/internal/emaildoc"
	"github.com/ignite/broadcast-mailer/internal/pkg/httputil"
)

const (
	defaultPreviewLimit = 25
	maxPreviewLimit     = 100
)

// MarkdownRequest carries an email's markdown source.
type MarkdownRequest struct {
	Markdown string `json:"markdown"`
}

// ValidationResponse reports whether markdown would make a valid broadcast
// and how many contacts it would reach.
type ValidationResponse struct {
	Valid    bool               `json:"valid"`
	Message  string             `json:"message,omitempty"`
	Data     *emaildoc.Document `json:"data,omitempty"`
	Contacts int                `json:"contacts"`
}

// ValidateBroadcast parses markdown and counts its audience without writing.
//
//	POST /admin/validate
func (h *Handlers) ValidateBroadcast(w http.ResponseWriter, r *http.Request) {
	var req MarkdownRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Markdown) == "" {
		httputil.OK(w, ValidationResponse{Message: "The markdown is empty"})
		return
	}

	doc, err := emaildoc.Parse(req.Markdown)
	if err != nil {
		httputil.OK(w, ValidationResponse{Message: err.Error()})
		return
	}
	if err := doc.Validate(); err != nil {
		httputil.OK(w, ValidationResponse{
			Message: "Ensure there is a Subject and Summary in the markdown: " + err.Error(),
			Data:    doc,
		})
		return
	}

	n, err := h.cmd.CountAudience(r.Context(), doc.SendToTag)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, ValidationResponse{Valid: true, Data: doc, Contacts: n})
}

// QueueBroadcast creates a broadcast and queues its messages.
//
//	POST /admin/queue-broadcast
func (h *Handlers) QueueBroadcast(w http.ResponseWriter, r *http.Request) {
	var req MarkdownRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	doc, err := emaildoc.Parse(req.Markdown)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	writeResult(w, h.cmd.CreateBroadcast(r.Context(), *doc), http.StatusCreated)
}

// BulkTagRequest is the body of POST /admin/bulk/contacts/tag. Tag may hold
// several comma-separated tags.
type BulkTagRequest struct {
	Tag    string   `json:"tag"`
	Emails []string `json:"emails"`
}

// BulkTag tags many contacts at once, creating missing contacts and tags.
//
//	POST /admin/bulk/contacts/tag
func (h *Handlers) BulkTag(w http.ResponseWriter, r *http.Request) {
	var req BulkTagRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	writeResult(w, h.cmd.BulkTag(r.Context(), req.Tag, req.Emails), http.StatusOK)
}

// OptIn subscribes a contact by id.
//
//	POST /admin/contacts/{id}/optin
func (h *Handlers) OptIn(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.BadRequest(w, "invalid contact id")
		return
	}
	writeResult(w, h.cmd.ContactOptIn(r.Context(), id), http.StatusOK)
}

// SearchContacts finds contacts by a fragment of their email or name.
//
//	GET /admin/contacts/search?term=
func (h *Handlers) SearchContacts(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("term"))
	if term == "" {
		httputil.BadRequest(w, "term is required")
		return
	}
	contacts, err := h.cmd.SearchContacts(r.Context(), term)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if contacts == nil {
		contacts = []domain.Contact{}
	}
	httputil.OK(w, map[string]any{"contacts": contacts, "count": len(contacts)})
}

// AudienceResponse is the size of an audience plus its first few members.
type AudienceResponse struct {
	Selector string           `json:"selector"`
	Count    int              `json:"count"`
	Preview  []domain.Contact `json:"preview"`
}

// Audience resolves a selector without writing. Tag defaults to every
// subscribed contact.
//
//	GET /admin/audience?tag=vip&limit=25
func (h *Handlers) Audience(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	selector := q.Get("tag")
	if selector == "" {
		selector = domain.AllSubscribers
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	count, err := h.cmd.CountAudience(r.Context(), selector)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	preview, err := h.cmd.PreviewAudience(r.Context(), selector, limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if preview == nil {
		preview = []domain.Contact{}
	}
	httputil.OK(w, AudienceResponse{Selector: selector, Count: count, Preview: preview})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultPreviewLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxPreviewLimit {
		n = maxPreviewLimit
	}
	return n, nil
}
