package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/sniff/internal/config"
	"firestige.xyz/sniff/internal/core"
	"firestige.xyz/sniff/internal/core/decoder"
	"firestige.xyz/sniff/internal/log"
	"firestige.xyz/sniff/internal/metrics"
	"firestige.xyz/sniff/internal/sink"
	"firestige.xyz/sniff/internal/sniffer"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture and decode frames from an interface",
	Long: `Capture frames from a network interface and print their decoded headers.

Requires CAP_NET_RAW. Stops on SIGINT/SIGTERM or after --count frames.

Examples:
  sniff capture -i eth0
  sniff capture -i eth0 -n 100 --format json
  sniff capture -i eth0 --backend tpacket -w 4 -o out.pcap`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyCaptureFlags(cmd, cfg)
		if err := cfg.ValidateAndApplyDefaults(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runCapture(ctx, cfg, cmd.OutOrStdout())
	},
}

func init() {
	f := captureCmd.Flags()
	f.StringP("interface", "i", "", "interface to capture on")
	f.StringP("backend", "b", "", "socket backend: raw | tpacket")
	f.IntP("workers", "w", 0, "concurrent receive loops")
	f.IntP("count", "n", 0, "stop after this many frames (0 = unlimited)")
	f.String("format", "", "output format: text | json | yaml")
	f.StringP("output", "o", "", "also write frames to this pcap file")
}

// applyCaptureFlags overrides configuration values with explicitly set flags.
func applyCaptureFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("interface") {
		c.Capture.Interface, _ = f.GetString("interface")
	}
	if f.Changed("backend") {
		c.Capture.Backend, _ = f.GetString("backend")
	}
	if f.Changed("workers") {
		c.Capture.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("count") {
		c.Capture.Limit, _ = f.GetInt("count")
	}
	if f.Changed("format") {
		c.Output.Format, _ = f.GetString("format")
	}
	if f.Changed("output") {
		c.Output.PcapFile, _ = f.GetString("output")
	}
}

func runCapture(ctx context.Context, c *config.Config, out io.Writer) error {
	opts, err := captureOptions(c)
	if err != nil {
		return err
	}

	if c.Metrics.Enabled {
		srv := metrics.NewServer(c.Metrics.Listen, c.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				log.GetLogger().WithError(err).Warn("metrics server stop failed")
			}
		}()
	}

	linkType := core.LinkType(c.Decoder.LinkType)
	snk, err := sink.New(c.Output, out, uint32(opts.Pool.Size()), linkType)
	if err != nil {
		return err
	}
	defer func() {
		if err := snk.Close(); err != nil {
			log.GetLogger().WithError(err).Warn("failed to close output")
		}
	}()

	tr, err := openTransport(opts)
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer tr.Close()

	s := sniffer.New(sniffer.Config{
		Receiver: tr,
		Decoder:  decoder.New(decoder.WithLinkType(linkType)),
		Sink:     snk,
		Workers:  c.Capture.Workers,
		Limit:    uint64(c.Capture.Limit),
	})
	return s.Run(ctx)
}
