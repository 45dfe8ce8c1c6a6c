// Command vtrender is a demo harness exercising pkg/engine end to end:
// either as a standalone PTY-attached renderer that submits one
// drawlist file and polls for input, or as a streamsrv HTTP/WebSocket
// front end. Grounded on cmd/vibetunnel/main.go's cobra root-command +
// package-level-flag-vars shape, narrowed to this engine's own knobs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vtengine/core/pkg/backend"
	"github.com/vtengine/core/pkg/config"
	"github.com/vtengine/core/pkg/diffrender"
	"github.com/vtengine/core/pkg/engine"
	"github.com/vtengine/core/pkg/streamsrv"
)

var version = "dev"

var (
	configFile string

	serve    bool
	addr     string
	tlsFlag  bool
	tlsAddr  string
	tlsDom   string
	tlsSelf  bool

	inputPath    string
	outputPath   string
	drawlistPath string
	pollMs       int
	pollCount    int

	forceColorMode string
)

var rootCmd = &cobra.Command{
	Use:   "vtrender",
	Short: "Demo harness for the vtengine rendering core",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file path")

	rootCmd.Flags().BoolVar(&serve, "serve", false, "Start the streamsrv WebSocket/SSE front end instead of the standalone demo")
	rootCmd.Flags().StringVar(&addr, "addr", ":8088", "Address to serve on")
	rootCmd.Flags().BoolVar(&tlsFlag, "tls", false, "Enable HTTPS/TLS for --serve")
	rootCmd.Flags().StringVar(&tlsAddr, "tls-addr", ":8443", "HTTPS address for --serve")
	rootCmd.Flags().StringVar(&tlsDom, "tls-domain", "", "Domain for Let's Encrypt (enables certmagic)")
	rootCmd.Flags().BoolVar(&tlsSelf, "tls-self-signed", true, "Use a self-signed certificate")

	rootCmd.Flags().StringVar(&inputPath, "input", "", "File/FIFO to read host input from (standalone mode; defaults to this process's own terminal)")
	rootCmd.Flags().StringVar(&outputPath, "output", "", "File to write rendered output to (standalone mode; defaults to this process's own terminal)")
	rootCmd.Flags().StringVar(&drawlistPath, "drawlist", "", "Drawlist file to submit and present once (standalone mode)")
	rootCmd.Flags().IntVar(&pollMs, "poll-ms", 200, "Timeout per PollEvents call in standalone mode")
	rootCmd.Flags().IntVar(&pollCount, "poll-count", 10, "Number of PollEvents calls to make in standalone mode")

	rootCmd.Flags().StringVar(&forceColorMode, "force-color-mode", "", "Force a color mode: rgb, 256, or 16")

	// Config.MergeFlags-recognized flags, registered here so they can be
	// overridden on the command line the way cmd/vibetunnel registers
	// its own config-merged flags.
	rootCmd.Flags().Int("target-fps", 0, "Override target FPS")
	rootCmd.Flags().Int("tab-width", 0, "Override tab width")
	rootCmd.Flags().Int("queue-capacity", 0, "Override event queue capacity")
	rootCmd.Flags().Uint32("max-drawlist-bytes", 0, "Override the drawlist byte limit")
	rootCmd.Flags().Int("out-max-bytes-per-frame", 0, "Override the diff renderer's per-frame output cap")
	rootCmd.Flags().Bool("scroll-region-opt", false, "Enable scroll region optimization")
	rootCmd.Flags().Bool("suppress-sync-update", false, "Suppress synchronized-update sequences")
	rootCmd.Flags().Bool("suppress-scroll-region", false, "Suppress scroll region sequences")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vtrender %s\n", version)
		},
	})
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig(configFile)
	cfg.MergeFlags(cmd.Flags())
	if err := applyColorModeFlag(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if serve {
		return runServe(cfg)
	}
	return runStandalone(cfg)
}

func applyColorModeFlag(cfg *config.Config) error {
	switch forceColorMode {
	case "":
		return nil
	case "rgb":
		mode := diffrender.ColorRGB
		cfg.CapsOverride.ForceColorMode = &mode
	case "256":
		mode := diffrender.Color256
		cfg.CapsOverride.ForceColorMode = &mode
	case "16":
		mode := diffrender.Color16
		cfg.CapsOverride.ForceColorMode = &mode
	default:
		return fmt.Errorf("unknown --force-color-mode %q (want rgb, 256, or 16)", forceColorMode)
	}
	return nil
}

func runServe(cfg *config.Config) error {
	srv := streamsrv.NewServer(cfg)
	if tlsFlag {
		fmt.Printf("Serving vtengine WebSocket/SSE front end on %s (HTTPS)\n", tlsAddr)
		return srv.StartTLS(streamsrv.TLSConfig{
			Enabled:    true,
			Domain:     tlsDom,
			SelfSigned: tlsSelf || tlsDom == "",
		}, addr, tlsAddr)
	}
	fmt.Printf("Serving vtengine WebSocket/SSE front end on %s\n", addr)
	return srv.Start(addr)
}

func runStandalone(cfg *config.Config) error {
	be, err := newStandaloneBackend()
	if err != nil {
		return err
	}

	eng, err := engine.Create(cfg, be)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Destroy()

	if drawlistPath != "" {
		buf, err := os.ReadFile(drawlistPath)
		if err != nil {
			return fmt.Errorf("read drawlist: %w", err)
		}
		if err := eng.SubmitDrawlist(buf); err != nil {
			return fmt.Errorf("submit drawlist: %w", err)
		}
		if err := eng.Present(); err != nil {
			return fmt.Errorf("present: %w", err)
		}
	}

	out := make([]byte, 16<<10)
	for i := 0; i < pollCount; i++ {
		n, err := eng.PollEvents(pollMs, out)
		if err != nil {
			return fmt.Errorf("poll events: %w", err)
		}
		if n > 0 {
			fmt.Fprintf(os.Stderr, "vtrender: packed %d bytes of input events\n", n)
		}
	}

	snap, err := eng.GetMetrics(^uint32(0))
	if err == nil {
		fmt.Fprintf(os.Stderr, "vtrender: frame_index=%d bytes_emitted=%d events_dropped=%d\n",
			snap.FrameIndex, snap.BytesEmitted, snap.EventsDropped)
	}
	return nil
}

func newStandaloneBackend() (backend.Backend, error) {
	if inputPath != "" && outputPath != "" {
		return backend.NewFileWatchBackend(inputPath, outputPath, 80, 24, diffrender.Caps{ColorMode: diffrender.ColorRGB})
	}
	return backend.NewPTYBackend()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
