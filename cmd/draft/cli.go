package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pokedraft/draftlink/internal/controller"
	"github.com/pokedraft/draftlink/internal/registry"
	"github.com/pokedraft/draftlink/internal/session"
	"github.com/pokedraft/draftlink/internal/transport"
)

type config struct {
	registryURL string
	stunServers []string
	useRelay    bool
	verbose     bool
}

func newRootCmd(cfg *config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("DRAFT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "draft",
		Short:         "Peer-to-peer ban/pick draft: host a room, share the code, draft together.",
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&cfg.registryURL, "registry", "http://localhost:8080", "room registry base URL (env: DRAFT_REGISTRY)")
	fs.StringSliceVar(&cfg.stunServers, "stun", nil, "STUN server URLs for direct connections (env: DRAFT_STUN)")
	fs.BoolVar(&cfg.useRelay, "relay", false, "relay frames through the registry instead of connecting directly (env: DRAFT_RELAY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display connection logs (env: DRAFT_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(newHostCmd(cfg), newJoinCmd(cfg), newSoloCmd(cfg))
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	return cmd
}

func newHostCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Create a room and wait for a guest (or draft solo meanwhile)",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHost(cmd.Context(), cfg)
		},
	}
}

func newJoinCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "join <room-code>",
		Short: "Join an existing room by its 8-character code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(cmd.Context(), cfg, strings.ToUpper(args[0]))
		},
	}
}

func newSoloCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "solo",
		Short: "Run a draft locally, acting for both teams",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger(cfg)
			defer logger.Sync()

			ctx, stop := notifyContext(cmd.Context())
			defer stop()

			end, _ := transport.Pipe()
			ctrl := controller.New(logger, end, "SOLO", controller.RoleHost)
			defer ctrl.Close()

			fmt.Println("Solo draft. You act for both teams.")
			return runREPL(ctx, ctrl)
		},
	}
}

func runHost(parent context.Context, cfg *config) error {
	logger := buildLogger(cfg)
	defer logger.Sync()

	ctx, stop := notifyContext(parent)
	defer stop()

	reg := registry.NewClient(logger, cfg.registryURL, nil)

	var (
		ctrl   *controller.Controller
		roomID string
	)
	if cfg.useRelay {
		id, err := registry.NewRoomID()
		if err != nil {
			return err
		}
		if _, err := reg.CreateRoom(ctx, id, ""); err != nil {
			return err
		}
		tp, err := transport.DialRelay(ctx, logger, reg.RelayURL(id, "host"))
		if err != nil {
			return err
		}
		roomID = id
		ctrl = controller.New(logger, tp, roomID, controller.RoleHost)
	} else {
		tp, err := transport.NewWebRTC(logger, cfg.stunServers)
		if err != nil {
			return err
		}
		est := session.NewEstablisher(logger, reg)
		roomID, err = est.Host(ctx, tp)
		if err != nil {
			return err
		}
		// The guest may never arrive; the draft works solo until it does.
		go func() {
			if err := est.AwaitAnswer(ctx, tp, roomID); err != nil && ctx.Err() == nil {
				logger.Error("guest handshake failed", zap.Error(err))
			}
		}()
		ctrl = controller.New(logger, tp, roomID, controller.RoleHost)
	}
	defer ctrl.Close()

	fmt.Printf("Room code: %s\nShare it with your opponent, then start drafting.\n", roomID)
	return runREPL(ctx, ctrl)
}

func runJoin(parent context.Context, cfg *config, roomID string) error {
	logger := buildLogger(cfg)
	defer logger.Sync()

	ctx, stop := notifyContext(parent)
	defer stop()

	reg := registry.NewClient(logger, cfg.registryURL, nil)

	var ctrl *controller.Controller
	if cfg.useRelay {
		check, err := reg.CheckRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if !check.Exists {
			return fmt.Errorf("%w: %s", session.ErrNoSuchRoom, roomID)
		}
		tp, err := transport.DialRelay(ctx, logger, reg.RelayURL(roomID, "guest"))
		if err != nil {
			return err
		}
		ctrl = controller.New(logger, tp, roomID, controller.RoleGuest)
	} else {
		tp, err := transport.NewWebRTC(logger, cfg.stunServers)
		if err != nil {
			return err
		}
		est := session.NewEstablisher(logger, reg)
		if err := est.Join(ctx, tp, roomID); err != nil {
			if errors.Is(err, session.ErrNoSuchRoom) {
				return fmt.Errorf("room %s does not exist or has expired", roomID)
			}
			return err
		}
		ctrl = controller.New(logger, tp, roomID, controller.RoleGuest)
	}
	defer ctrl.Close()

	fmt.Printf("Joined room %s. Waiting for the channel to open...\n", roomID)
	return runREPL(ctx, ctrl)
}

func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func buildLogger(cfg *config) *zap.Logger {
	if cfg.verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	return zap.NewNop()
}
