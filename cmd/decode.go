package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/sniff/internal/core"
	"firestige.xyz/sniff/internal/core/decoder"
	"firestige.xyz/sniff/internal/sink"
	"firestige.xyz/sniff/internal/sniffer"
	"firestige.xyz/sniff/internal/source/file"
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode frames from a pcap file or a hex string",
	Long: `Decode the Ethernet and IPv4 headers of recorded frames.

Examples:
  sniff decode -r capture.pcap
  sniff decode -r capture.pcapng --format yaml
  sniff decode --hex aabbccddeeff1122334455660800450000140000400040060000c0a80001c0a80002`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("format") {
			cfg.Output.Format, _ = cmd.Flags().GetString("format")
		}
		out := cmd.OutOrStdout()

		switch {
		case decodeFile != "" && decodeHex != "":
			return errors.New("--read and --hex are mutually exclusive")
		case decodeFile != "":
			return runDecodeFile(decodeFile, out)
		case decodeHex != "":
			frame, err := parseHex(decodeHex)
			if err != nil {
				return err
			}
			return runDecodeFrame(frame, out)
		default:
			return errors.New("one of --read or --hex is required")
		}
	},
}

// maxSnaplen is the pcap snapshot length for frames of unknown origin.
const maxSnaplen = 65535

var (
	decodeFile string
	decodeHex  string
)

func init() {
	decodeCmd.Flags().StringVarP(&decodeFile, "read", "r", "", "pcap or pcapng file to read")
	decodeCmd.Flags().StringVar(&decodeHex, "hex", "", "one frame as hex")
	decodeCmd.Flags().String("format", "", "output format: text | json | yaml")
}

// runDecodeFile decodes every frame of a savefile with the link type its
// header announces.
func runDecodeFile(path string, out io.Writer) error {
	src, err := file.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	snk, err := sink.New(cfg.Output, out, maxSnaplen, src.LinkType())
	if err != nil {
		return err
	}
	s := sniffer.New(sniffer.Config{
		Decoder: decoder.New(decoder.WithLinkType(src.LinkType())),
		Sink:    snk,
	})

	for {
		raw, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = snk.Close()
			return err
		}
		s.Handle(raw)
	}
	return snk.Close()
}

func runDecodeFrame(frame []byte, out io.Writer) error {
	linkType := core.LinkType(cfg.Decoder.LinkType)
	snk, err := sink.New(cfg.Output, out, maxSnaplen, linkType)
	if err != nil {
		return err
	}

	s := sniffer.New(sniffer.Config{
		Decoder: decoder.New(decoder.WithLinkType(linkType)),
		Sink:    snk,
	})
	pkt := s.Handle(core.RawPacket{Data: frame, CaptureLen: uint32(len(frame)), OrigLen: uint32(len(frame))})
	if err := snk.Close(); err != nil {
		return err
	}
	if pkt.Err != nil {
		return fmt.Errorf("decode failed: %w", pkt.Err)
	}
	return nil
}
