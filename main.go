/*
Renders the castle scene. Without a window the scene runs headless until
max_frames is reached or the process is interrupted.
*/
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/castle/castle"
	"github.com/spaghettifunk/castle/engine"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/platform"
	"github.com/spaghettifunk/castle/engine/renderer/vulkan"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	backend    string
	frames     uint64
	logLevel   string
	window     bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "castle",
		Short:         "Render the castle scene",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "assets/config/castle.toml", "application config file")
	flags.StringVar(&opts.backend, "backend", "", "override the backend (headless or vulkan)")
	flags.Uint64Var(&opts.frames, "frames", 0, "stop after this many frames, 0 keeps the configured value")
	flags.StringVar(&opts.logLevel, "log-level", "", "override the log level")
	flags.BoolVar(&opts.window, "window", false, "open a window for keyboard and mouse input")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		core.LogError("castle stopped: %s", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options) error {
	config, err := engine.LoadConfig(opts.configPath)
	if errors.Is(err, os.ErrNotExist) {
		core.LogWarn("config %s not found, using defaults", opts.configPath)
		config, err = engine.DefaultApplicationConfig(), nil
	}
	if err != nil {
		return err
	}
	if opts.backend != "" {
		config.Backend = opts.backend
	}
	if opts.frames > 0 {
		config.MaxFrames = opts.frames
	}
	if opts.logLevel != "" {
		config.LogLevel = opts.logLevel
	}
	config.Window = config.Window || opts.window

	if err := config.Validate(); err != nil {
		return err
	}

	var engineOpts []engine.Option
	var backendDevice *vulkan.VulkanBackend
	if config.Backend == engine.BackendVulkan {
		backendDevice, err = vulkan.New(vulkan.ContextConfig{ApplicationName: config.Name})
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, engine.WithBackend(backendDevice))
	}

	game := castle.NewCastleGame(config)
	e, err := engine.New(game.Game, engineOpts...)
	if err != nil {
		if backendDevice != nil {
			backendDevice.Close()
		}
		return err
	}

	if config.Window {
		p := platform.New(e.Input(), e.Events())
		if err := p.Startup(config.Name, config.StartPosX, config.StartPosY, config.Width, config.Height); err != nil {
			return errors.Join(err, e.Shutdown())
		}
		e.AttachPlatform(p)
	}

	if err := e.Initialize(); err != nil {
		return errors.Join(err, e.Shutdown())
	}

	runErr := e.Run(ctx)
	return errors.Join(runErr, e.Shutdown())
}
