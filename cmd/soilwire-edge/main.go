// Package main implements the soilwire-edge binary: an offline-resilient
// relay from a line-framed sensor stream to a remote table sink.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/soilwire/soilwire/pkg/soilwire"
)

// Options holds the command-line configuration.
type Options struct {
	ConfigPath string `short:"c" env:"SOILWIRE_CONFIG" long:"config" description:"Path to the YAML configuration file" default:"./data/config.yaml"`
	LogLevel   string `short:"l" env:"SOILWIRE_LOG_LEVEL" long:"log-level" description:"Log level: debug|info|warn|error" default:"info"`
	Validate   bool   `long:"validate" description:"Load and validate the configuration, then exit"`
	Version    bool   `short:"v" long:"version" description:"Show version information"`
	Help       bool
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ParseCLI parses command-line arguments and returns the options.
func ParseCLI(args []string) (opts *Options, err error) {
	opts = new(Options)
	parser := flags.NewParser(opts, flags.HelpFlag)
	nonParsedArgs, err := parser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			opts.Help = true
		}
		if !flags.WroteHelp(err) {
			parser.WriteHelp(os.Stdout)
		}
		return opts, err
	}
	if len(nonParsedArgs) > 1 { // args[0] is the binary name
		return opts, fmt.Errorf("unknown argument(s): %v", nonParsedArgs[1:])
	}
	return opts, nil
}

// ShowVersion prints version information.
func ShowVersion() {
	fmt.Printf("soilwire-edge version %s\n", version)
	if commit != "none" && commit != "" {
		fmt.Printf("commit: %s\n", commit)
	}
	if date != "unknown" && date != "" {
		fmt.Printf("built: %s\n", date)
	}
}

// SetupLogging configures logrus with the requested level.
func SetupLogging(logLevel string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	logrus.WithFields(logrus.Fields{
		"version": version,
		"pid":     os.Getpid(),
	}).Info("soilwire-edge logging initialized")
	return nil
}

// SetupCloseHandler cancels the run context on SIGINT/SIGTERM so the relay
// can finish its in-flight reading and current monitor cycle.
func SetupCloseHandler(cancel context.CancelFunc) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logrus.Info("Interrupt received, shutting down...")
		cancel()
	}()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			ShowVersion()
			os.Exit(0)
		}
	}

	opts, err := ParseCLI(os.Args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}

	if err := SetupLogging(opts.LogLevel); err != nil {
		logrus.WithError(err).Fatal("Failed to setup logging")
	}

	flow, err := soilwire.Conf(opts.ConfigPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	if opts.Validate {
		fmt.Printf("config %s is valid\n", opts.ConfigPath)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	SetupCloseHandler(cancel)

	if err := flow.Run(ctx); err != nil && ctx.Err() == nil {
		logrus.WithError(err).Fatal("Relay exited with error")
	}

	logrus.Info("Graceful shutdown completed")
}
