package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/ignite/broadcast-mailer/internal/domain"
	"github.com/ignite/broadcast-mailer/internal/emaildoc"
	"github.com/ignite/broadcast-mailer/internal/pkg/httputil"
	"github.com/ignite/broadcast-mailer/internal/service/command"
)

// Commands is the part of command.Engine the handlers call.
type Commands interface {
	CreateBroadcast(ctx context.Context, doc emaildoc.Document) command.Result
	BulkTag(ctx context.Context, tags string, emails []string) command.Result
	ContactSignup(ctx context.Context, name, email string) command.Result
	ContactOptIn(ctx context.Context, contactID int64) command.Result
	ContactOptOut(ctx context.Context, key string) command.Result
	LinkClicked(ctx context.Context, key, link string) command.Result
	ExportContact(ctx context.Context, key string) command.Result
	UpdateContactName(ctx context.Context, key, name string) command.Result

	CountAudience(ctx context.Context, selector string) (int, error)
	PreviewAudience(ctx context.Context, selector string, limit int) ([]domain.Contact, error)
	SearchContacts(ctx context.Context, term string) ([]domain.Contact, error)
	FindContactByKey(ctx context.Context, key string) (*domain.Contact, error)
}

// Options configures the public endpoints.
type Options struct {
	// LinkHosts lists the hosts /link/clicked redirects to. A host also
	// admits its subdomains. Empty disables redirects.
	LinkHosts []string
	// RequireConsent rejects signups without consent_to_processing.
	RequireConsent bool
}

// Handlers contains all HTTP handlers
type Handlers struct {
	cmd       Commands
	about     string
	linkHosts []string
	consent   bool
}

// NewHandlers creates a new Handlers instance
func NewHandlers(cmd Commands, opts Options) *Handlers {
	h := &Handlers{cmd: cmd, about: "Tailwind Traders Mail Services API", consent: opts.RequireConsent}
	for _, host := range opts.LinkHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			h.linkHosts = append(h.linkHosts, host)
		}
	}
	return h
}

// CommandResponse is the JSON envelope for every command endpoint.
type CommandResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Data     any    `json:"data,omitempty"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Deleted  int    `json:"deleted"`
}

// writeResult maps a command outcome onto an HTTP status. It is the only
// place that knows which rejection is which status code.
func writeResult(w http.ResponseWriter, res command.Result, okStatus int) {
	switch res.Outcome {
	case command.OutcomeOK:
		httputil.JSON(w, okStatus, CommandResponse{
			Success:  true,
			Message:  res.Reason,
			Data:     res.Data,
			Inserted: res.Inserted,
			Updated:  res.Updated,
			Deleted:  res.Deleted,
		})
	case command.OutcomeRejected:
		httputil.JSON(w, rejectionStatus(res), CommandResponse{Message: res.Reason})
	default:
		httputil.InternalError(w, res.Err)
	}
}

func rejectionStatus(res command.Result) int {
	switch {
	case res.Is(command.ErrNotFound):
		return http.StatusNotFound
	case res.Is(command.ErrExists):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
