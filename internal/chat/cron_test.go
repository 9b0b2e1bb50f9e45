package chat

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/deskhand/internal/models"
)

func TestNextCronDuration(t *testing.T) {
	tests := []struct {
		name string
		expr string
		ok   bool
	}{
		{"every minute", "* * * * *", true},
		{"weekday mornings", "0 9 * * 1-5", true},
		{"six fields", "0 0 9 * * *", false},
		{"garbage", "not a cron", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := nextCronDuration(tt.expr)
			if tt.ok && d <= 0 {
				t.Errorf("nextCronDuration(%q) = %v, want > 0", tt.expr, d)
			}
			if !tt.ok && d != 0 {
				t.Errorf("nextCronDuration(%q) = %v, want 0", tt.expr, d)
			}
		})
	}
}

func TestSendDigest(t *testing.T) {
	db := openTestDB(t)
	m := NewMockAdapter()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	cfg := testConfig()
	cfg.Admins = []string{"A1", "A2"}

	d, err := NewDaemon(DaemonOpts{DB: db, Config: cfg, Adapter: m, Out: io.Discard})
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	d.sendDelay = 0

	// No open requests: digest is suppressed entirely.
	d.sendDigest(context.Background())
	if m.SentCount() != 0 {
		t.Fatalf("sent = %d, want 0 with nothing open", m.SentCount())
	}

	seed := []models.Request{
		{SubmitterID: "U1", SubmitterHandle: "@ivan", Category: "Electrical",
			Urgency: "Urgent", Location: "Room 204", Description: "Light not working",
			Status: models.StatusNew},
		{SubmitterID: "U2", SubmitterHandle: "@petr", Category: "Cleaning",
			Urgency: "Normal", Location: "Lobby", Description: "Dusty",
			Status: models.StatusDone},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	d.sendDigest(context.Background())

	// One digest per admin, open requests only.
	if m.SentCount() != 2 {
		t.Fatalf("sent = %d, want one digest per admin", m.SentCount())
	}
	for _, admin := range cfg.Admins {
		msgs := m.SentTo(admin)
		if len(msgs) != 1 {
			t.Fatalf("admin %s received %d digests, want 1", admin, len(msgs))
		}
		if !strings.Contains(msgs[0].Text, "Room 204") {
			t.Errorf("digest missing open request: %q", msgs[0].Text)
		}
		if strings.Contains(msgs[0].Text, "Dusty") {
			t.Errorf("digest leaks closed request: %q", msgs[0].Text)
		}
	}
}

func TestRunDigestScheduler_BadCronExits(t *testing.T) {
	db := openTestDB(t)
	m := NewMockAdapter()
	cfg := testConfig()
	cfg.Digest.Cron = "garbage"

	d, err := NewDaemon(DaemonOpts{DB: db, Config: cfg, Adapter: m, Out: io.Discard})
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}

	done := make(chan struct{})
	go func() {
		d.runDigestScheduler(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not exit on bad cron expression")
	}
}
