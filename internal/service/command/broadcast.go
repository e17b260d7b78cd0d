package command

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/broadcast-mailer/internal/domain"
	"github.com/ignite/broadcast-mailer/internal/emaildoc"
	"github.com/ignite/broadcast-mailer/internal/pkg/logger"
)

// BroadcastCreated is the payload of a successful CreateBroadcast.
type BroadcastCreated struct {
	BroadcastID int64  `json:"broadcast_id"`
	EmailID     int64  `json:"email_id"`
	Slug        string `json:"slug"`
	SendToTag   string `json:"send_to_tag"`
	Notified    bool   `json:"notified"`
}

// CreateBroadcast stores the email and broadcast for doc and queues one
// pending message per subscribed contact in the broadcast's audience, all in
// one transaction. Inserted is the number of messages queued. After commit
// it signals delivery workers; a failed signal only clears Notified.
func (e *Engine) CreateBroadcast(ctx context.Context, doc emaildoc.Document) Result {
	if err := doc.Validate(); err != nil {
		return Rejected(ErrInvalid, err.Error())
	}

	now := time.Now().UTC()
	email := &domain.Email{
		Slug:      doc.Slug,
		Subject:   doc.Subject,
		Preview:   doc.Summary,
		HTML:      doc.BodyHTML,
		CreatedAt: now,
	}
	if email.Slug == "" {
		email.Slug = domain.Slugify(doc.Subject)
	}
	broadcast := &domain.Broadcast{
		Status:    domain.BroadcastPending,
		Name:      doc.Subject,
		Slug:      email.Slug,
		ReplyTo:   e.cfg.DefaultFrom,
		SendToTag: normalizeSelector(doc.SendToTag),
		CreatedAt: now,
	}

	res := e.inTx(ctx, "create_broadcast", func(tx Tx) (Result, error) {
		if err := tx.InsertEmail(ctx, email); err != nil {
			return Result{}, err
		}
		broadcast.EmailID = email.ID
		if err := tx.InsertBroadcast(ctx, broadcast); err != nil {
			return Result{}, err
		}
		n, err := tx.FanOut(ctx, broadcast, email)
		if err != nil {
			return Result{}, fmt.Errorf("fan out messages: %w", err)
		}
		return OK(&BroadcastCreated{
			BroadcastID: broadcast.ID,
			EmailID:     email.ID,
			Slug:        broadcast.Slug,
			SendToTag:   broadcast.SendToTag,
		}, n, 0, 0), nil
	})
	if !res.Success() {
		return res
	}

	created := res.Data.(*BroadcastCreated)
	created.Notified = e.notify(ctx, broadcast.Slug)
	logger.Info("broadcast queued",
		"broadcast_id", broadcast.ID, "slug", broadcast.Slug,
		"audience", broadcast.SendToTag, "messages", res.Inserted, "notified", created.Notified)
	return res
}

func (e *Engine) notify(ctx context.Context, slug string) bool {
	if e.pub == nil {
		return false
	}
	if err := e.pub.Publish(ctx, slug); err != nil {
		logger.Warn("broadcast signal not delivered; workers will pick it up on poll",
			"slug", slug, "err", err)
		return false
	}
	return true
}
