/*
Command anima-avatar fetches an avatar model, moves it onto the host rig and
remembers the last good source for the next start.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spaghettifunk/anima-avatar/engine"
	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/state"
	"github.com/spaghettifunk/anima-avatar/testbed"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "anima-avatar",
	Short:         "Fetch avatar models and transplant them onto a rig",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "anima.toml", "Path to the TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override application.log_level (debug, info, warn, error)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start the engine, auto-load the last avatar and run until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runEngine,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "fetch <location>",
		Short: "Fetch one avatar from a URL or file and transplant it",
		Args:  cobra.ExactArgs(1),
		RunE:  runFetch,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "state",
		Short: "Print the persisted avatar session",
		Args:  cobra.NoArgs,
		RunE:  runState,
	})
}

func loadConfig() (*engine.ApplicationConfig, error) {
	config, err := engine.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		config.Application.LogLevel = logLevel
	}
	return config, nil
}

func newEngine() (*engine.Engine, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	e, err := engine.New(testbed.NewTestGame(config).Game)
	if err != nil {
		return nil, err
	}
	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		return nil, err
	}
	return e, nil
}

func runEngine(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here
		<-sigCh
		_ = e.Shutdown()
	}()

	// run engine
	runErr := e.Run()
	if err := e.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func runFetch(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if !e.Fetch(ctx, args[0]) {
		return fmt.Errorf("could not fetch avatar from '%s'", args[0])
	}
	m := e.Host().Rig.Mapping()
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %s (%d bones mapped)\n", args[0], m.Len())
	return nil
}

func runState(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := state.Open(config.State)
	if err != nil {
		return err
	}
	defer store.Close()

	session := state.ReadSession(store, config.Avatar.StartURL)
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %q\n%s = %t\n",
		state.KeyStartURL, session.StartURL,
		state.KeyDownloadOnStart, session.DownloadOnStart)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		core.LogError("%s", err)
		os.Exit(1)
	}
}
