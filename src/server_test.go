package trackgw

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readHuabaoFrame pulls the next complete response frame off a client
// connection, keeping any trailing bytes for the following call.
func readHuabaoFrame(t *testing.T, conn net.Conn, decoder *HuabaoFrameDecoder, buffer []byte) ([]byte, []byte) {
	t.Helper()
	chunk := make([]byte, 512)
	for {
		frame, consumed, err := decoder.Decode(buffer)
		if err == nil {
			return frame, buffer[consumed:]
		}
		require.ErrorIs(t, err, errNeedMoreData)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, err := conn.Read(chunk)
		require.NoError(t, err)
		buffer = append(buffer, chunk[:n]...)
	}
}

func TestGatewayTCPRoundTrip(t *testing.T) {
	sink := &collectingConsumer{}
	pipeline := NewPipeline(sink)
	defer pipeline.Close()

	gateway := NewGateway(&Config{AutoRegister: true}, nil, pipeline)
	protocol := gateway.Protocols()["huabao"]
	require.NoError(t, gateway.startTCP(protocol, "127.0.0.1:0"))

	conn, err := net.Dial("tcp", gateway.listeners[0].Addr().String())
	require.NoError(t, err)

	_, err = conn.Write(buildTestFrame(msgTerminalRegister, testDeviceID, 0x0001, false, nil))
	require.NoError(t, err)

	responses := NewHuabaoFrameDecoder()
	frame, rest := readHuabaoFrame(t, conn, responses, nil)
	assert.Equal(t, uint16(msgTerminalRegisterResponse), binary.BigEndian.Uint16(frame[1:3]))

	// valid fix outside the datum rectangle, 50.0 N 10.0 E
	body := buildLocationBody(0, 0x00000002, 50000000, 10000000)
	_, err = conn.Write(buildTestFrame(msgLocationReport, testDeviceID, 0x0002, false, body))
	require.NoError(t, err)

	frame, _ = readHuabaoFrame(t, conn, responses, rest)
	assert.Equal(t, uint16(msgGeneralResponse), binary.BigEndian.Uint16(frame[1:3]))

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	position := sink.snapshot()[0]
	assert.Equal(t, "huabao", position.Protocol)
	assert.Equal(t, int64(1), position.DeviceID)
	assert.True(t, position.Valid)
	assert.Equal(t, 50.0, position.Latitude())
	assert.Equal(t, 10.0, position.Longitude())

	// the device session remembers the fix for blind-spot reports
	session := gateway.Sessions().ByDeviceID(1)
	require.NotNil(t, session)

	conn.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, gateway.Stop(ctx))
}

func TestGatewayUDPRoundTrip(t *testing.T) {
	sink := &collectingConsumer{}
	pipeline := NewPipeline(sink)
	defer pipeline.Close()

	gateway := NewGateway(&Config{AutoRegister: true}, nil, pipeline)
	protocol := gateway.Protocols()["tr900"]
	require.NoError(t, gateway.startUDP(protocol, "127.0.0.1:0"))

	conn, err := net.Dial("udp", gateway.packets[0].LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	sentence := ">00001001,4,1,150626,131252,W05830.2978,S3137.2783,,00,348,18,00,003-000,0,3,11111011*3b!\r\n"
	_, err = conn.Write([]byte(sentence))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	position := sink.snapshot()[0]
	assert.Equal(t, "tr900", position.Protocol)
	assert.True(t, position.Valid)
	assert.InDelta(t, -(31.0 + 37.2783/60), position.Latitude(), 1e-9)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, gateway.Stop(ctx))
}

func TestGatewayStartUnknownProtocol(t *testing.T) {
	config := &Config{Protocols: map[string]ProtocolConfig{
		"bogus": {Transport: "tcp", Port: 19999},
	}}
	gateway := NewGateway(config, nil, nil)
	assert.ErrorContains(t, gateway.Start(), "unknown protocol")
}

func TestGatewayStopIdempotent(t *testing.T) {
	gateway := NewGateway(&Config{}, nil, nil)
	require.NoError(t, gateway.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, gateway.Stop(ctx))
	require.NoError(t, gateway.Stop(ctx))
}

func TestGatewaySessionSweep(t *testing.T) {
	gateway := NewGateway(&Config{AutoRegister: true, SessionExpiry: 1}, nil, nil)
	require.NoError(t, gateway.Start())

	conn := &recordingConn{}
	session, err := gateway.Sessions().Session(conn, testRemote, "012345678901")
	require.NoError(t, err)

	registry := gateway.Sessions()
	registry.mu.Lock()
	session.lastSeen = time.Now().Add(-time.Hour)
	registry.mu.Unlock()

	require.Eventually(t, func() bool {
		return gateway.Sessions().ByDeviceID(session.DeviceID) == nil
	}, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, gateway.Stop(ctx))
}

func TestDrainFramesOversizedBuffer(t *testing.T) {
	gateway := NewGateway(&Config{}, nil, nil)
	protocol := gateway.Protocols()["huabao"]

	// first byte latches the delimiter and it never recurs
	junk := make([]byte, 70*1024)
	junk[0] = 0x01

	buffer, fatal := gateway.drainFrames(protocol, protocol.NewFrameDecoder(),
		protocol.NewDecoder(), &recordingConn{}, testRemote, junk)
	assert.True(t, fatal)
	assert.Nil(t, buffer)
}

func TestGatewaySendCommand(t *testing.T) {
	gateway := NewGateway(&Config{AutoRegister: true}, nil, nil)

	conn := &recordingConn{}
	session, err := gateway.Sessions().Session(conn, testRemote, "012345678901")
	require.NoError(t, err)

	require.NoError(t, gateway.SendCommand(NewCommand(session.DeviceID, CommandEngineStop)))

	require.Len(t, conn.writes, 1)
	frame := conn.writes[0]
	assert.Equal(t, byte(frameDelimiter), frame[0])
	assert.Equal(t, byte(frameDelimiter), frame[len(frame)-1])
	assert.Equal(t, uint16(msgTerminalControl), binary.BigEndian.Uint16(frame[1:3]))
	assert.Equal(t, []byte{0xf0}, frame[13:len(frame)-2])

	err = gateway.SendCommand(NewCommand(404, CommandRebootDevice))
	assert.ErrorIs(t, err, ErrUnknownDevice)
}
