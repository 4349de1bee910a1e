package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"wall-navigation/wall_nav"
)

var autostart bool

// runCmd runs both components in one process
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the navigation controller with an in-process rotation executor",
	RunE:  runAll,
}

// navigateCmd runs the controller against a remote executor
var navigateCmd = &cobra.Command{
	Use:   "navigate",
	Short: "Run the navigation controller against a remote rotation executor",
	RunE:  runNavigate,
}

// rotateCmd serves the goal protocol
var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Serve the rotation executor goal protocol",
	RunE:  runRotate,
}

func init() {
	for _, c := range []*cobra.Command{runCmd, navigateCmd} {
		c.Flags().BoolVar(&autostart, "autostart", false, "Start navigating without waiting for a start request.")
	}
	rootCmd.AddCommand(runCmd, navigateCmd, rotateCmd)
}

// stack holds the shared ambient components of a process.
type stack struct {
	cfg     wall_nav.AppConfig
	events  *wall_nav.EventLog
	metrics *wall_nav.Metrics
	history *wall_nav.History
	sender  *wall_nav.OutputSender
}

func newStack(cfg wall_nav.AppConfig) (*stack, error) {
	s := &stack{cfg: cfg, events: wall_nav.NewEventLog(cfg.Log), metrics: wall_nav.NewMetrics()}

	sender, err := wall_nav.NewOutputSender(cfg.Output.UDPAddr)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open velocity output: %w", err)
	}
	s.sender = sender

	if cfg.History.Path != "" {
		history, err := wall_nav.OpenHistory(cfg.History.Path)
		if err != nil {
			s.close()
			return nil, err
		}
		s.history = history
	}
	return s, nil
}

func (s *stack) velocity() wall_nav.VelocityPublisher {
	return wall_nav.InstrumentVelocity(s.sender, s.metrics)
}

func (s *stack) newExecutor() (*wall_nav.RotationExecutor, error) {
	return wall_nav.NewRotationExecutor(s.cfg.Rotation, s.velocity(),
		wall_nav.WithEventLog(s.events),
		wall_nav.WithMetrics(s.metrics),
		wall_nav.WithHistory(s.history),
	)
}

func (s *stack) newController(client wall_nav.RotationClient) (*wall_nav.NavigationController, error) {
	ctrl, err := wall_nav.NewNavigationController(s.cfg.Navigation, s.velocity(), client,
		wall_nav.WithControllerEvents(s.events),
		wall_nav.WithControllerMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}
	if autostart {
		ctrl.StartNavigation()
	}
	return ctrl, nil
}

func (s *stack) close() {
	_ = s.sender.Close()
	_ = s.history.Close()
	_ = s.events.Close()
}

func runAll(cmd *cobra.Command, args []string) error {
	return withStack(func(ctx context.Context, s *stack) error {
		exec, err := s.newExecutor()
		if err != nil {
			return err
		}
		defer exec.Close()

		ctrl, err := s.newController(wall_nav.NewLocalRotationClient(exec))
		if err != nil {
			return err
		}
		defer ctrl.Close()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return serveHTTP(ctx, s, s.cfg.HTTP.Addr, wall_nav.NewRouter(exec, ctrl, s.metrics)) })
		g.Go(func() error { return wall_nav.RunLive(ctx, s.cfg.Live, ctrl, s.events) })
		return g.Wait()
	})
}

func runNavigate(cmd *cobra.Command, args []string) error {
	return withStack(func(ctx context.Context, s *stack) error {
		if s.cfg.HTTP.RotationURL == "" {
			return fmt.Errorf("%w: http.rotation_url must be set", wall_nav.ErrInvalidConfig)
		}
		ctrl, err := s.newController(wall_nav.NewHTTPRotationClient(s.cfg.HTTP.RotationURL))
		if err != nil {
			return err
		}
		defer ctrl.Close()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return serveHTTP(ctx, s, s.cfg.HTTP.Addr, wall_nav.NewRouter(nil, ctrl, s.metrics)) })
		g.Go(func() error { return wall_nav.RunLive(ctx, s.cfg.Live, ctrl, s.events) })
		return g.Wait()
	})
}

func runRotate(cmd *cobra.Command, args []string) error {
	return withStack(func(ctx context.Context, s *stack) error {
		exec, err := s.newExecutor()
		if err != nil {
			return err
		}
		defer exec.Close()
		// rotate listens where navigate's http.rotation_url points, so both run on one host.
		return serveHTTP(ctx, s, s.cfg.HTTP.RotationAddr, wall_nav.NewRouter(exec, nil, s.metrics))
	})
}

// withStack loads config, builds the ambient stack, and runs fn until SIGINT/SIGTERM.
func withStack(fn func(ctx context.Context, s *stack) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newStack(cfg)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = fn(ctx, s)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serveHTTP serves handler on addr and shuts down when ctx is done.
func serveHTTP(ctx context.Context, s *stack, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.events.Info("http_server_started", wall_nav.F("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Feedback streams stay open until their goal ends; Close cuts them.
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
	}
	return <-errc
}
