//go:build !linux

package capture

import "firestige.xyz/sniff/internal/core"

func openConn(Options) (Conn, error) {
	return nil, core.ErrUnsupportedPlatform
}
