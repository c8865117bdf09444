package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Write one raw frame to an interface",
	Long: `Write one link-layer frame, given as hex, to a network interface.
The frame is sent as is: no header is added and no checksum is computed.

Examples:
  sniff send -i eth0 --hex "ffffffffffff 112233445566 0806 0001..."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("interface") {
			cfg.Capture.Interface, _ = cmd.Flags().GetString("interface")
		}
		frame, err := parseHex(sendHex)
		if err != nil {
			return err
		}

		opts, err := captureOptions(cfg)
		if err != nil {
			return err
		}
		tr, err := openTransport(opts)
		if err != nil {
			return fmt.Errorf("failed to open capture: %w", err)
		}
		defer tr.Close()

		return runSend(tr, frame, cmd.OutOrStdout())
	},
}

var sendHex string

func init() {
	sendCmd.Flags().StringP("interface", "i", "", "interface to send on")
	sendCmd.Flags().StringVar(&sendHex, "hex", "", "frame bytes as hex (required)")
	_ = sendCmd.MarkFlagRequired("hex")
}

// Sender writes frames.
type Sender interface {
	Send(p []byte) (int, error)
}

func runSend(s Sender, frame []byte, out io.Writer) error {
	n, err := s.Send(frame)
	if err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	fmt.Fprintf(out, "sent %d bytes\n", n)
	return nil
}

// parseHex decodes a hex string. Whitespace and ':', '-', '.' separators
// are ignored, as is a leading 0x.
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':', '-', '.':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, fmt.Errorf("empty frame")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex frame: %w", err)
	}
	return b, nil
}
