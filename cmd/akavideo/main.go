// ABOUTME: CLI entrypoint for the ad-video pipeline: create or resume a session and run it to completion.
// ABOUTME: Wires config loading, .env, session bootstrap, signal handling, and progress output.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/linapp/akavideo/config"
	"github.com/linapp/akavideo/workflow"
)

var version = "dev"

// cliConfig holds all CLI configuration parsed from flags.
type cliConfig struct {
	resumeID           string
	noAutoResume       bool
	resumeIgnoreConfig bool
	topic              string
	shots              int
	style              string
	resolution         string
	outputBase         string
	dryRun             bool
	showVersion        bool
	projectRoot        string
}

func main() {
	cfg := parseFlags()

	if cfg.showVersion {
		fmt.Printf("akavideo %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(cfg))
}

// parseFlags parses command-line flags and returns a populated cliConfig.
func parseFlags() cliConfig {
	var cfg cliConfig

	fs := flag.NewFlagSet("akavideo", flag.ContinueOnError)
	fs.StringVar(&cfg.resumeID, "resume", "", "Session id to resume (e.g. aka-3f9c01ab)")
	fs.BoolVar(&cfg.noAutoResume, "no-auto-resume", false, "Ignore saved state and start fresh")
	fs.BoolVar(&cfg.resumeIgnoreConfig, "resume-ignore-config", false, "Resume even when the config changed since the saved state")
	fs.StringVar(&cfg.topic, "topic", "", "Ad topic (prompted from config default when empty)")
	fs.IntVar(&cfg.shots, "shots", 0, "Number of shots (0 uses the configured default)")
	fs.StringVar(&cfg.style, "style", "", "Visual style key or numeric menu choice")
	fs.StringVar(&cfg.resolution, "resolution", "", "Output resolution key or numeric menu choice")
	fs.StringVar(&cfg.outputBase, "output", "", "Base directory for session work dirs")
	fs.BoolVar(&cfg.dryRun, "dry-run", false, "Run with placeholder clients, no external API calls")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")
	fs.StringVar(&cfg.projectRoot, "root", ".", "Project root containing config.yaml")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: akavideo [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	return cfg
}

// run executes the pipeline and returns an exit code.
func run(cli cliConfig) int {
	config.LoadDotEnv(".env")

	cfg, err := config.Load(cli.projectRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := workflow.NewSession(cfg, workflow.BootstrapOptions{
		ResumeID:     cli.resumeID,
		NoAutoResume: cli.noAutoResume,
		ForceResume:  cli.resumeIgnoreConfig,
		OutputBase:   cli.outputBase,
		DryRun:       cli.dryRun,
		Options: workflow.Options{
			Topic:      cli.topic,
			Shots:      cli.shots,
			Style:      cli.style,
			Resolution: cli.resolution,
		},
		Events: printEvent,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer sess.Close()

	fmt.Printf("session %s (%s)\n", sess.Ctx.SessionID, sess.Ctx.WorkDir)

	if err := sess.RunAll(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fmt.Fprintf(os.Stderr, "resume with: akavideo -resume %s\n", sess.Ctx.SessionID)
		return 1
	}

	if final, ok := sess.Ctx.Assets["final_video"].(string); ok {
		fmt.Printf("final video: %s\n", final)
	}
	return 0
}

// printEvent writes pipeline progress to stdout.
func printEvent(ev workflow.Event) {
	switch ev.Type {
	case workflow.EventStepStarted:
		fmt.Printf("-> %s\n", ev.Step)
	case workflow.EventStepSkipped:
		fmt.Printf("   %s (already done)\n", ev.Step)
	case workflow.EventStepCompleted:
		fmt.Printf("   %s done\n", ev.Step)
	case workflow.EventStepFailed:
		fmt.Printf("   %s failed\n", ev.Step)
	}
}
