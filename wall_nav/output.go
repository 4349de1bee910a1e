package wall_nav

import (
	"fmt"
	"net"
	"strings"
	"sync"
)

// OutputSender sends velocity commands over UDP as CSV.
type OutputSender struct {
	mu   sync.Mutex
	conn *net.UDPConn
}

// NewOutputSender creates a UDP sender for the given address. An empty address yields a no-op sender.
func NewOutputSender(addr string) (*OutputSender, error) {
	if addr == "" {
		return &OutputSender{}, nil
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, err
	}
	return &OutputSender{conn: conn}, nil
}

// Close releases the UDP socket.
func (s *OutputSender) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Publish writes "linear_x,angular_z" as a CSV payload.
func (s *OutputSender) Publish(cmd VelocityCommand) {
	if s == nil || s.conn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.conn.Write([]byte(FormatVelocity(cmd)))
}

// FormatVelocity renders the UDP wire form of a command.
func FormatVelocity(cmd VelocityCommand) string {
	return fmt.Sprintf("%.4f,%.4f", cmd.LinearX, cmd.AngularZ)
}

// ParseVelocity parses the UDP wire form of a command.
func ParseVelocity(b []byte) (VelocityCommand, error) {
	parts := strings.Split(strings.TrimSpace(string(b)), ",")
	if len(parts) != 2 {
		return VelocityCommand{}, fmt.Errorf("expected 2 fields, got %d", len(parts))
	}
	lin, err := parseF64(parts[0])
	if err != nil {
		return VelocityCommand{}, err
	}
	ang, err := parseF64(parts[1])
	if err != nil {
		return VelocityCommand{}, err
	}
	return VelocityCommand{LinearX: lin, AngularZ: ang}, nil
}
