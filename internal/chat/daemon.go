package chat

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/zulandar/deskhand/internal/config"
	"github.com/zulandar/deskhand/internal/intake"
	"github.com/zulandar/deskhand/internal/store"
	"github.com/zulandar/deskhand/internal/workflow"
	"gorm.io/gorm"
)

// Daemon is the main bot process. It connects to a chat platform via an
// Adapter, pumps inbound messages through the Router, and runs the
// scheduled open-requests digest.
type Daemon struct {
	db        *gorm.DB
	cfg       *config.Config
	adapter   Adapter
	store     *store.Store
	sendDelay time.Duration
	out       io.Writer
}

// DaemonOpts holds parameters for creating a Daemon.
type DaemonOpts struct {
	DB      *gorm.DB
	Config  *config.Config
	Adapter Adapter
	Out     io.Writer // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("chat: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("chat: config is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("chat: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	st, err := store.New(store.Opts{DB: opts.DB})
	if err != nil {
		return nil, err
	}
	return &Daemon{
		db:        opts.DB,
		cfg:       opts.Config,
		adapter:   opts.Adapter,
		store:     st,
		sendDelay: time.Duration(opts.Config.Notify.SendDelayMs) * time.Millisecond,
		out:       out,
	}, nil
}

// Run starts the daemon. It connects the adapter, builds the intake form,
// workflow, and router, and blocks until the context is cancelled. On
// shutdown it closes the adapter gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Deskhand connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("chat: connect: %w", err)
	}

	// Extract bot user ID if the adapter supports it.
	var botUserID string
	if bui, ok := d.adapter.(BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}

	notifier, err := NewNotifier(NotifierOpts{
		Adapter:   d.adapter,
		Admins:    d.cfg.Admins,
		Channel:   d.cfg.Channel,
		SendDelay: d.sendDelay,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("chat: build notifier: %w", err)
	}

	form, err := intake.New(intake.Opts{Store: d.store, Notifier: notifier})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("chat: build form: %w", err)
	}

	flow, err := workflow.New(workflow.Opts{Store: d.store, Notifier: notifier})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("chat: build workflow: %w", err)
	}

	router, err := NewRouter(RouterOpts{
		Form:      form,
		Workflow:  flow,
		Store:     d.store,
		Adapter:   d.adapter,
		IsAdmin:   d.cfg.IsAdmin,
		BotUserID: botUserID,
		SendDelay: d.sendDelay,
		Out:       d.out,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("chat: build router: %w", err)
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("chat: listen: %w", err)
	}

	if d.cfg.Digest.Enabled {
		go d.runDigestScheduler(ctx)
	}

	fmt.Fprintf(d.out, "Deskhand online\n")

	// Main event loop: pump inbound messages until context is cancelled.
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Deskhand shutting down...\n")
			if err := d.adapter.Close(); err != nil {
				log.Printf("chat: close adapter: %v", err)
			}
			fmt.Fprintf(d.out, "Deskhand stopped\n")
			return nil

		case msg, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "Deskhand inbound channel closed\n")
				return nil
			}
			router.Handle(ctx, msg)
		}
	}
}
