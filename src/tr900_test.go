package trackgw

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTr900Decode(t *testing.T) {
	decoder := NewTr900ProtocolDecoder(&Config{}, NewSessionRegistry(nil, true))
	conn := &recordingConn{}

	sentence := ">00001001,4,1,150626,131252,W05830.2978,S3137.2783,,00,348,18,00,003-000,0,3,11111011*3b!"
	positions, err := decoder.Decode(conn, testRemote, []byte(sentence))
	require.NoError(t, err)
	require.Len(t, positions, 1)
	position := positions[0]

	assert.Equal(t, "tr900", position.Protocol)
	assert.True(t, position.Valid)

	expected := time.Date(2015, 6, 26, 13, 12, 52, 0, time.UTC)
	assert.Equal(t, expected.Unix(), position.FixTime.Unix())
	assert.Equal(t, expected.Unix(), position.DeviceTime.Unix())

	// longitude comes before latitude in the sentence
	assert.InDelta(t, -(58.0 + 30.2978/60), position.LongitudeWgs84(), 1e-9)
	assert.InDelta(t, -(31.0 + 37.2783/60), position.LatitudeWgs84(), 1e-9)

	// southern hemisphere: no datum warp
	assert.Equal(t, position.LatitudeWgs84(), position.Latitude())
	assert.Equal(t, position.LongitudeWgs84(), position.Longitude())

	// speed is reported in knots already
	assert.Equal(t, 0.0, position.Speed)
	assert.Equal(t, 348.0, position.Course)

	assert.Equal(t, 18.0, position.Attributes[KeyRssi])
	assert.Equal(t, 0, position.Attributes[KeyEvent])
	assert.Equal(t, 3, position.Attributes[PrefixAdc+"1"])
	assert.Equal(t, 0, position.Attributes[KeyBattery])
	assert.Equal(t, "3", position.Attributes[KeyInput])
	assert.Equal(t, "11111011", position.Attributes[KeyStatus])
}

func TestTr900DecodeInsideChina(t *testing.T) {
	decoder := NewTr900ProtocolDecoder(&Config{}, NewSessionRegistry(nil, true))
	conn := &recordingConn{}

	sentence := ">00001001,4,1,240115,060000,E12134.6970,N2459.7700,,12.5,90,20,5,100-50,0,1,00000000"
	positions, err := decoder.Decode(conn, testRemote, []byte(sentence))
	require.NoError(t, err)
	require.Len(t, positions, 1)
	position := positions[0]

	assert.InDelta(t, 24.0+59.7700/60, position.LatitudeWgs84(), 1e-9)
	assert.InDelta(t, 121.0+34.6970/60, position.LongitudeWgs84(), 1e-9)

	// inside the datum rectangle the published coordinates are warped
	wantLat, wantLon := Wgs84ToGcj02(position.LatitudeWgs84(), position.LongitudeWgs84())
	assert.Equal(t, wantLat, position.Latitude())
	assert.Equal(t, wantLon, position.Longitude())
	assert.NotEqual(t, position.LatitudeWgs84(), position.Latitude())

	assert.Equal(t, 12.5, position.Speed)
}

func TestTr900DecodeGarbage(t *testing.T) {
	decoder := NewTr900ProtocolDecoder(&Config{}, NewSessionRegistry(nil, true))

	positions, err := decoder.Decode(&recordingConn{}, testRemote, []byte("$GPRMC,131252.000,A,"))
	assert.NoError(t, err)
	assert.Empty(t, positions)
}

func TestTr900UnknownDeviceDropped(t *testing.T) {
	// no directory and no auto-registration: the report is dropped
	decoder := NewTr900ProtocolDecoder(&Config{}, NewSessionRegistry(nil, false))

	sentence := ">00001001,4,1,150626,131252,W05830.2978,S3137.2783,,00,348,18,00,003-000,0,3,11111011"
	positions, err := decoder.Decode(&recordingConn{}, testRemote, []byte(sentence))
	assert.NoError(t, err)
	assert.Empty(t, positions)
}

func TestTr900BindsEndpoint(t *testing.T) {
	sessions := NewSessionRegistry(nil, true)
	decoder := NewTr900ProtocolDecoder(&Config{}, sessions)
	conn := &recordingConn{}

	sentence := ">00001001,4,1,150626,131252,W05830.2978,S3137.2783,,00,348,18,00,003-000,0,3,11111011"
	positions, err := decoder.Decode(conn, testRemote, []byte(sentence))
	require.NoError(t, err)
	require.Len(t, positions, 1)

	session, err := sessions.Session(conn, testRemote)
	require.NoError(t, err)
	assert.Equal(t, positions[0].DeviceID, session.DeviceID)
	assert.Equal(t, "00001001", session.UniqueID)
}
