package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/broadcast-mailer/internal/pkg/httputil"
	"github.com/ignite/broadcast-mailer/internal/service/command"
)

// About returns the service banner.
//
//	GET /about
func (h *Handlers) About(w http.ResponseWriter, r *http.Request) {
	httputil.Text(w, h.about)
}

// Unsubscribe opts the contact that owns key out. The body is a JSON
// boolean: true when the contact was subscribed and no longer is.
//
//	GET /unsubscribe/{key}
func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	res := h.cmd.ContactOptOut(r.Context(), chi.URLParam(r, "key"))
	if res.Outcome == command.OutcomeFailed {
		httputil.InternalError(w, res.Err)
		return
	}
	httputil.OK(w, res.Updated > 0)
}

// Confirm is the double opt-in link sent after signup. The body is a JSON
// boolean: true when the contact became subscribed.
//
//	GET /confirm/{key}
func (h *Handlers) Confirm(w http.ResponseWriter, r *http.Request) {
	c, err := h.cmd.FindContactByKey(r.Context(), chi.URLParam(r, "key"))
	if errors.Is(err, command.ErrNotFound) {
		httputil.OK(w, false)
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	res := h.cmd.ContactOptIn(r.Context(), c.ID)
	if res.Outcome == command.OutcomeFailed {
		httputil.InternalError(w, res.Err)
		return
	}
	httputil.OK(w, res.Updated > 0)
}

// LinkClicked records a click for the contact that owns key. A "to" URL on
// a configured link host is recorded with the click and followed with a
// redirect; any other target is ignored.
//
//	GET /link/clicked/{key}?to=https://...
func (h *Handlers) LinkClicked(w http.ResponseWriter, r *http.Request) {
	target, ok := h.redirectTarget(r.URL.Query().Get("to"))
	res := h.cmd.LinkClicked(r.Context(), chi.URLParam(r, "key"), target)

	if ok {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	writeResult(w, res, http.StatusOK)
}

// redirectTarget returns raw when it is an http(s) URL on an allowed host.
func (h *Handlers) redirectTarget(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.User != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	for _, allowed := range h.linkHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return u.String(), true
		}
	}
	return "", false
}

// SignupRequest is the body of POST /signup.
type SignupRequest struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	ConsentToProcessing bool   `json:"consent_to_processing"`
}

// Signup creates a contact.
//
//	POST /signup
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if h.consent && !req.ConsentToProcessing {
		httputil.JSON(w, http.StatusBadRequest, CommandResponse{Message: "Consent to data processing is required"})
		return
	}
	writeResult(w, h.cmd.ContactSignup(r.Context(), req.Name, req.Email), http.StatusCreated)
}

// ExportContact returns everything stored about the contact that owns key.
//
//	GET /data-subject/export/{key}
func (h *Handlers) ExportContact(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.cmd.ExportContact(r.Context(), chi.URLParam(r, "key")), http.StatusOK)
}

// UpdateContactRequest is the body of PUT /data-subject/update/{key}.
type UpdateContactRequest struct {
	Name string `json:"name"`
}

// UpdateContact corrects the display name of the contact that owns key.
//
//	PUT /data-subject/update/{key}
func (h *Handlers) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req UpdateContactRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	writeResult(w, h.cmd.UpdateContactName(r.Context(), chi.URLParam(r, "key"), req.Name), http.StatusOK)
}
