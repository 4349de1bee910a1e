package wall_nav

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputSender_Publish(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	sender, err := NewOutputSender(pc.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	sender.Publish(VelocityCommand{LinearX: 0.2})

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "0.2000,0.0000", string(buf[:n]))

	cmd, err := ParseVelocity(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, VelocityCommand{LinearX: 0.2}, cmd)
}

func TestOutputSender_NoAddr(t *testing.T) {
	t.Parallel()

	sender, err := NewOutputSender("")
	require.NoError(t, err)
	assert.NotPanics(t, func() { sender.Publish(VelocityCommand{AngularZ: 1}) })
	assert.NoError(t, sender.Close())

	var nilSender *OutputSender
	assert.NotPanics(t, func() { nilSender.Publish(VelocityCommand{}) })
}

func TestParseVelocity(t *testing.T) {
	t.Parallel()

	cmd, err := ParseVelocity([]byte("0.0000,-0.5000\n"))
	require.NoError(t, err)
	assert.Equal(t, VelocityCommand{AngularZ: -0.5}, cmd)
	assert.Equal(t, "0.0000,-0.5000", FormatVelocity(cmd))

	_, err = ParseVelocity([]byte("1"))
	assert.Error(t, err)
	_, err = ParseVelocity([]byte("x,1"))
	assert.Error(t, err)
}
