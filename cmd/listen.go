// Package cmd holds the auxiliary subcommands of the edgelatency binary.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/smazurov/edgelatency/internal/logging"
	"github.com/smazurov/edgelatency/internal/transport"
	"github.com/smazurov/edgelatency/internal/transport/broadcast"
	"github.com/spf13/cobra"
)

// Line is one decoded telemetry message.
type Line struct {
	On        bool
	Cycles    uint32
	HasCycles bool
}

// ParseLine decodes "LED:ON" / "LED:OFF", optionally followed by the
// latency fields. Trailing bytes lost to truncation are tolerated.
func ParseLine(s string) (Line, error) {
	s = strings.TrimSpace(s)
	var state string
	var cycles uint32
	n, _ := fmt.Sscanf(s, "LED:%s cycles:%d", &state, &cycles)
	if n == 0 {
		return Line{}, fmt.Errorf("not a telemetry line: %q", s)
	}

	var l Line
	switch state {
	case "ON":
		l.On = true
	case "OFF":
	default:
		return Line{}, fmt.Errorf("unknown state %q", state)
	}
	if n == 2 {
		l.Cycles, l.HasCycles = cycles, true
	}
	return l, nil
}

// Stats aggregates decoded lines.
type Stats struct {
	Lines     int
	Malformed int
	Min, Max  uint32
	sum       uint64
	timed     int
}

// Add folds one raw line into the stats.
func (s *Stats) Add(raw string) (Line, error) {
	l, err := ParseLine(raw)
	if err != nil {
		s.Malformed++
		return l, err
	}
	s.Lines++
	if l.HasCycles {
		if s.timed == 0 || l.Cycles < s.Min {
			s.Min = l.Cycles
		}
		if l.Cycles > s.Max {
			s.Max = l.Cycles
		}
		s.sum += uint64(l.Cycles)
		s.timed++
	}
	return l, nil
}

// Mean returns the average latency in cycles, 0 without timed lines.
func (s *Stats) Mean() float64 {
	if s.timed == 0 {
		return 0
	}
	return float64(s.sum) / float64(s.timed)
}

// CreateListenCmd creates the companion reader for the telemetry stream.
func CreateListenCmd() *cobra.Command {
	var (
		kind     string
		addr     string
		basePort int
		channel  uint8
		retry    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print telemetry from a running edgelatency instance",
		Long: `Connects to the TCP transport, or listens for broadcast frames, and prints every ` +
			`telemetry line with a local receive timestamp. A latency summary is logged on exit.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "info", Format: "text"})
			logger := logging.GetLogger("listen")

			k, err := transport.ParseKind(kind)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stats := &Stats{}
			out := c.OutOrStdout()

			switch k {
			case transport.KindTCP:
				err = listenTCP(ctx, addr, retry, stats, out, logger)
			case transport.KindBroadcast:
				err = listenBroadcast(ctx, fmt.Sprintf(":%d", broadcast.Port(basePort, channel)), stats, out, logger)
			default:
				return fmt.Errorf("listen does not support transport %q", k)
			}

			logger.Info("Listener finished",
				"lines", stats.Lines,
				"malformed", stats.Malformed,
				"min_cycles", stats.Min,
				"max_cycles", stats.Max,
				"mean_cycles", stats.Mean())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&kind, "transport", "t", "tcp", "Transport to read from (tcp, broadcast)")
	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:5000", "TCP address of the device")
	cmd.Flags().IntVar(&basePort, "base-port", broadcast.DefaultBasePort, "Broadcast base UDP port")
	cmd.Flags().Uint8Var(&channel, "channel", broadcast.DefaultChannel, "Broadcast channel")
	cmd.Flags().DurationVar(&retry, "retry", time.Second, "Reconnect delay after the device drops the connection (0 exits)")

	return cmd
}

// listenTCP reads lines until ctx is done. The device keeps a single
// client, so another listener connecting will evict this one.
func listenTCP(ctx context.Context, addr string, retry time.Duration, stats *Stats, out io.Writer, logger *slog.Logger) error {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			logger.Info("Connected", "addr", addr)
			err = readLines(ctx, conn, stats, out)
			conn.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if retry <= 0 {
			return err
		}
		logger.Warn("Connection lost, retrying", "addr", addr, "error", err, "in", retry)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

func readLines(ctx context.Context, conn net.Conn, stats *Stats, out io.Writer) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		printLine(out, stats, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func listenBroadcast(ctx context.Context, addr string, stats *Stats, out io.Writer, logger *slog.Logger) error {
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { pc.Close() })
	defer stop()
	defer pc.Close()

	logger.Info("Listening for broadcast frames", "addr", pc.LocalAddr().String())

	buf := make([]byte, broadcast.MaxFramePayload)
	for {
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		for _, line := range strings.Split(strings.TrimRight(string(buf[:n]), "\n"), "\n") {
			printLine(out, stats, line)
		}
		logger.Debug("Frame received", "from", from.String(), "bytes", n)
	}
}

func printLine(out io.Writer, stats *Stats, raw string) {
	ts := time.Now().Format("15:04:05.000000")
	if _, err := stats.Add(raw); err != nil {
		fmt.Fprintf(out, "%s ? %q\n", ts, raw)
		return
	}
	fmt.Fprintf(out, "%s %s\n", ts, strings.TrimSpace(raw))
}
