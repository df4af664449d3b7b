package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maloquacious/backdrop/internal/about"
	"github.com/maloquacious/backdrop/internal/acquire"
	"github.com/maloquacious/backdrop/internal/background"
	"github.com/maloquacious/backdrop/internal/contacts"
	"github.com/maloquacious/backdrop/internal/messages"
	"github.com/maloquacious/backdrop/internal/permission"
	"github.com/maloquacious/backdrop/internal/video"
	"github.com/maloquacious/backdrop/internal/web"
)

func runServe(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	gate, err := permission.NewGate(cfg.Permissions)
	if err != nil {
		return err
	}
	if cfg.Media.UploadDir != "" {
		if err := os.MkdirAll(cfg.Media.UploadDir, 0o755); err != nil {
			return fmt.Errorf("failed to create upload directory: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bg := background.New(st, background.WithLogger(log.With("component", "background")))
	bg.Subscribe(func(snap background.Snapshot) {
		log.Debug("background is now %s", snap.State())
	})

	history := messages.NewHistory(st, cfg.Messages.Limit, log.With("component", "messages"))
	alerts := messages.NewNotifier(history, log.With("component", "alerts"))

	srv := web.New(web.Deps{
		Background:     bg,
		Alerts:         alerts,
		History:        history,
		Permissions:    gate,
		Contacts:       contacts.NewFileDirectory(cfg.Contacts.File),
		Videos:         video.NewFavorites(st, cfg.Media.UploadDir, cfg.Media.InboxDir),
		Team:           about.Team{Name: cfg.Team.Name, Members: cfg.Team.Members},
		MediaDir:       cfg.Media.UploadDir,
		InboxDir:       cfg.Media.InboxDir,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
		PublicDir:      cfg.Server.PublicDir,
		Log:            log.With("component", "web"),
	})
	defer srv.Close()

	// /ready reports 503 until this completes.
	go bg.Initialize(ctx)

	if cfg.Media.InboxDir != "" {
		inbox, err := acquire.NewInbox(cfg.Media.InboxDir, inboxHandler(bg, gate, alerts), log.With("component", "inbox"))
		if err != nil {
			return err
		}
		if err := inbox.Start(ctx); err != nil {
			return err
		}
		defer inbox.Stop()
		log.Info("watching %s for new backgrounds", cfg.Media.InboxDir)
	}

	publicSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.PublicHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind admin to 127.0.0.1 only (loopback enforcement)
	adminListener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Server.AdminPort))
	if err != nil {
		return fmt.Errorf("admin listener bind failed (loopback only): %w", err)
	}
	adminSrv := &http.Server{
		Handler: srv.AdminHandler(web.AdminInfo{
			Version:       version.String(),
			SchemaVersion: schemaVersion,
			BuildDate:     buildDate,
		}, stop),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("public server listening on :%d", cfg.Server.Port)
		if err := publicSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("public server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("admin server listening on 127.0.0.1:%d (JSON-only)", cfg.Server.AdminPort)
		if err := adminSrv.Serve(adminListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server error: %w", err)
		}
		return nil
	})

	// Optional run timer
	if exitAfter > 0 {
		g.Go(func() error {
			log.Info("exit-after timer set: %s", exitAfter)
			select {
			case <-time.After(exitAfter):
				stop()
			case <-gctx.Done():
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		_ = publicSrv.Shutdown(shutdownCtx)
		_ = adminSrv.Shutdown(shutdownCtx)
		if err := bg.Close(shutdownCtx); err != nil {
			log.Warn("background writes still pending at shutdown: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server error: %v", err)
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// inboxHandler makes an image dropped into the inbox the new background.
func inboxHandler(bg *background.Store, gate permission.Requester, alerts messages.Alerter) acquire.Handler {
	return func(ctx context.Context, r acquire.Result) {
		if r.Canceled || r.URI == "" {
			return
		}
		if gate.Request(ctx, permission.PhotoLibrary) != permission.Granted {
			alerts.Show(ctx, "Permission denied", "We need permission to use the photo library")
			return
		}
		if err := bg.Set(ctx, r.URI).Wait(ctx); err != nil {
			alerts.Show(ctx, "Error", "Could not save the image")
		}
	}
}
