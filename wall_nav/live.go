package wall_nav

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// FrameListener receives ranging frames as UDP datagrams and queues them in arrival order.
type FrameListener struct {
	conn    *net.UDPConn
	frames  chan RangingFrame
	events  *EventLog
	bufLen  int
	dropped atomic.Uint64
	// errLog throttles drop and parse-failure lines during floods.
	errLog  *rate.Limiter
}

// ListenFrames binds the UDP socket described by cfg.
func ListenFrames(cfg LiveConfig, events *EventLog) (*FrameListener, error) {
	if cfg.UDPAddr == "" {
		return nil, fmt.Errorf("%w: live.udp_addr must be set", ErrInvalidConfig)
	}
	addr, err := net.ResolveUDPAddr("udp", cfg.UDPAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}

	bufSize := cfg.ReadBuffer
	if bufSize <= 0 {
		bufSize = 65535
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = 16
	}
	return &FrameListener{
		conn:   conn,
		frames: make(chan RangingFrame, queue),
		events: events,
		bufLen: bufSize,
		errLog: rate.NewLimiter(rate.Every(time.Second), 5),
	}, nil
}

// Addr returns the bound local address.
func (l *FrameListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Dropped returns the number of frames discarded because the queue was full.
func (l *FrameListener) Dropped() uint64 {
	return l.dropped.Load()
}

// Frames returns the queue fed by Serve. It is closed when Serve returns.
func (l *FrameListener) Frames() <-chan RangingFrame {
	return l.frames
}

// Serve reads datagrams until ctx is done. Each frame is delivered at most once;
// frames arriving while the queue is full are dropped.
func (l *FrameListener) Serve(ctx context.Context) error {
	defer close(l.frames)
	go func() {
		<-ctx.Done()
		_ = l.conn.Close()
	}()

	buf := make([]byte, l.bufLen)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			continue
		}
		frame, err := ParseRangingFrame(buf[:n])
		if err != nil {
			if l.errLog.Allow() {
				l.events.Error("frame_parse_failed", F("error", err))
			}
			continue
		}
		frame.Stamp = time.Now()
		select {
		case l.frames <- frame:
		default:
			n := l.dropped.Add(1)
			if l.errLog.Allow() {
				l.events.Error("frame_dropped", F("samples", len(frame.Ranges)), F("dropped_total", int(n)))
			}
		}
	}
}

// RunLive feeds UDP ranging frames into the controller until ctx is done.
func RunLive(ctx context.Context, cfg LiveConfig, ctrl *NavigationController, events *EventLog) error {
	listener, err := ListenFrames(cfg, events)
	if err != nil {
		return err
	}
	events.Info("ranging_listener_started", F("addr", listener.Addr().String()))

	errc := make(chan error, 1)
	go func() { errc <- listener.Serve(ctx) }()

	runErr := ctrl.Run(ctx, listener.Frames())
	serveErr := <-errc
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return serveErr
}

// ParseRangingFrame parses a CSV payload of distance samples. "inf" and "nan" are accepted.
func ParseRangingFrame(b []byte) (RangingFrame, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return RangingFrame{}, errors.New("empty payload")
	}
	parts := strings.Split(s, ",")
	ranges := make([]float64, len(parts))
	for i, p := range parts {
		v, err := parseF64(p)
		if err != nil {
			return RangingFrame{}, fmt.Errorf("sample %d: %w", i, err)
		}
		ranges[i] = v
	}
	return RangingFrame{Ranges: ranges}, nil
}

// FormatRangingFrame renders the UDP wire form of a frame.
func FormatRangingFrame(frame RangingFrame) string {
	parts := make([]string, len(frame.Ranges))
	for i, v := range frame.Ranges {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// parseF64 parses a float from a CSV field.
func parseF64(value string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}
