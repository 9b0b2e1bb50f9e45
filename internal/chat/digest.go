package chat

import (
	"context"
	"log"
	"time"
)

// runDigestScheduler fires the open-requests digest on the configured cron
// schedule until the context is cancelled.
func (d *Daemon) runDigestScheduler(ctx context.Context) {
	for {
		wait := nextCronDuration(d.cfg.Digest.Cron)
		if wait <= 0 {
			log.Printf("chat: digest: bad cron expression %q, digest disabled", d.cfg.Digest.Cron)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			d.sendDigest(ctx)
		}
	}
}

// sendDigest delivers a summary of every open request to each admin.
// Suppressed when nothing is open; per-recipient failures are logged.
func (d *Daemon) sendDigest(ctx context.Context) {
	reqs, err := d.store.ListActive()
	if err != nil {
		log.Printf("chat: digest: list active: %v", err)
		return
	}
	if len(reqs) == 0 {
		return
	}

	text := FormatDigest(reqs)
	for i, admin := range d.cfg.Admins {
		if i > 0 && d.sendDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.sendDelay):
			}
		}
		if err := d.adapter.Send(ctx, OutboundMessage{UserID: admin, Text: text}); err != nil {
			log.Printf("chat: digest: send to %s: %v", admin, err)
		}
	}
}
