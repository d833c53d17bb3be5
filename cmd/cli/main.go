package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/TajoLin/website-speed-test/internal/geoip"
	"github.com/TajoLin/website-speed-test/internal/probe"
)

var (
	deadlineMS  int
	concurrency int
	geoipBase   string
)

var rootCmd = &cobra.Command{
	Use:   "speedtest",
	Short: "Measure TTFB, total time and bytes for arbitrary URLs",
	Long: `speedtest runs the same URL timing probe the API serves, as a
one-shot command. A target without a scheme defaults to https.`,
	Example: `  speedtest probe example.com
  speedtest probe https://a.test https://b.test
  speedtest geoip 1.2.3.4`,
}

var probeCmd = &cobra.Command{
	Use:   "probe <url> [url...]",
	Short: "Probe one or more URLs and print the JSON results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prober := &probe.Prober{Deadline: time.Duration(deadlineMS) * time.Millisecond}
		runner := probe.NewRunner(zap.NewNop(), prober, concurrency)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		var failed error
		for _, out := range runner.Run(cmd.Context(), args) {
			if out.Err != nil {
				_ = enc.Encode(map[string]string{"url": out.URL, "error": out.Err.Message})
				failed = multierr.Append(failed, fmt.Errorf("%s: %s", out.URL, out.Err.Message))
				continue
			}
			_ = enc.Encode(out.Result)
		}
		return failed
	},
}

var geoipCmd = &cobra.Command{
	Use:   "geoip [ip]",
	Short: "Look up geolocation/risk metadata for an IP (your own when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ip := ""
		if len(args) == 1 {
			ip = args[0]
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		info, err := geoip.NewClient(geoipBase).Lookup(ctx, ip)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

func init() {
	probeCmd.Flags().IntVar(&deadlineMS, "deadline-ms", int(probe.DefaultDeadline/time.Millisecond), "per-probe deadline in milliseconds")
	probeCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "max probes in flight")
	geoipCmd.Flags().StringVar(&geoipBase, "geoip-base", "", "override the geolocation service base URL")
	rootCmd.AddCommand(probeCmd, geoipCmd)
	rootCmd.SilenceUsage = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
