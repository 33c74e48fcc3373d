package trackgw

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionAutoRegister(t *testing.T) {
	registry := NewSessionRegistry(nil, true)
	conn := &recordingConn{}

	session, err := registry.Session(conn, testRemote, "356938035643809")
	require.NoError(t, err)
	assert.Equal(t, int64(1), session.DeviceID)
	assert.Equal(t, "356938035643809", session.UniqueID)

	// same unique id on a new connection resumes the same session
	other := &recordingConn{}
	resumed, err := registry.Session(other, testRemote, "356938035643809")
	require.NoError(t, err)
	assert.Same(t, session, resumed)

	// a second device gets the next id
	second, err := registry.Session(conn, testRemote, "867032050000001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.DeviceID)
}

func TestSessionUnknownDevice(t *testing.T) {
	registry := NewSessionRegistry(nil, false)

	_, err := registry.Session(&recordingConn{}, testRemote, "356938035643809")
	assert.ErrorIs(t, err, ErrUnknownDevice)

	// an endpoint that never identified itself has no session either
	_, err = registry.Session(&recordingConn{}, testRemote)
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestSessionDirectoryLookup(t *testing.T) {
	directory := directoryFunc(func(uniqueID string) (*DeviceInfo, error) {
		if uniqueID == "356938035643809" {
			return &DeviceInfo{ID: 42, UniqueID: uniqueID, Model: "VL300"}, nil
		}
		return nil, ErrUnknownDevice
	})
	registry := NewSessionRegistry(directory, false)

	session, err := registry.Session(&recordingConn{}, testRemote, "356938035643809")
	require.NoError(t, err)
	assert.Equal(t, int64(42), session.DeviceID)
	assert.Equal(t, "VL300", session.Model)

	_, err = registry.Session(&recordingConn{}, testRemote, "000000000000000")
	assert.ErrorIs(t, err, ErrUnknownDevice)

	assert.Same(t, session, registry.ByDeviceID(42))
}

func TestSessionFirstResolvableIDWins(t *testing.T) {
	directory := directoryFunc(func(uniqueID string) (*DeviceInfo, error) {
		if uniqueID == "known" {
			return &DeviceInfo{ID: 5, UniqueID: uniqueID}, nil
		}
		return nil, ErrUnknownDevice
	})
	registry := NewSessionRegistry(directory, false)

	session, err := registry.Session(&recordingConn{}, testRemote, "unknown", "known")
	require.NoError(t, err)
	assert.Equal(t, int64(5), session.DeviceID)
}

func TestSessionEndpointBinding(t *testing.T) {
	registry := NewSessionRegistry(nil, true)
	conn := &recordingConn{}

	bound, err := registry.Session(conn, testRemote, "356938035643809")
	require.NoError(t, err)
	assert.Same(t, conn, bound.Endpoint())

	// later messages on the same endpoint resolve without an id
	session, err := registry.Session(conn, testRemote)
	require.NoError(t, err)
	assert.Same(t, bound, session)

	registry.ReleaseEndpoint(conn, testRemote)
	_, err = registry.Session(conn, testRemote)
	assert.ErrorIs(t, err, ErrUnknownDevice)

	// the session itself survives the disconnect
	resumed, err := registry.Session(&recordingConn{}, testRemote, "356938035643809")
	require.NoError(t, err)
	assert.Same(t, bound, resumed)
}

func TestSessionExpireIdle(t *testing.T) {
	registry := NewSessionRegistry(nil, true)
	conn := &recordingConn{}

	session, err := registry.Session(conn, testRemote, "356938035643809")
	require.NoError(t, err)

	assert.Equal(t, 0, registry.ExpireIdle(time.Hour))
	time.Sleep(time.Millisecond)
	assert.Equal(t, 1, registry.ExpireIdle(0))
	assert.Nil(t, registry.ByDeviceID(session.DeviceID))

	// the endpoint binding goes with it
	_, err = registry.Session(conn, testRemote)
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestSessionTimezone(t *testing.T) {
	registry := NewSessionRegistry(nil, true)
	session, err := registry.Session(&recordingConn{}, testRemote, "356938035643809")
	require.NoError(t, err)

	// trackers on this protocol family default to China Standard Time
	_, offset := time.Now().In(session.TimeZone()).Zone()
	assert.Equal(t, 8*3600, offset)

	session.Set(KeyTimezone, time.UTC)
	assert.Equal(t, time.UTC, session.TimeZone())
}

func TestSessionTimezoneFromDirectory(t *testing.T) {
	directory := directoryFunc(func(uniqueID string) (*DeviceInfo, error) {
		return &DeviceInfo{
			ID:         9,
			UniqueID:   uniqueID,
			Attributes: map[string]string{KeyTimezone: "GMT+02:00"},
		}, nil
	})
	registry := NewSessionRegistry(directory, false)

	session, err := registry.Session(&recordingConn{}, testRemote, "356938035643809")
	require.NoError(t, err)

	_, offset := time.Now().In(session.TimeZone()).Zone()
	assert.Equal(t, 2*3600, offset)
}

func TestSessionLastLocation(t *testing.T) {
	registry := NewSessionRegistry(nil, true)
	session, err := registry.Session(&recordingConn{}, testRemote, "356938035643809")
	require.NoError(t, err)

	fix := NewPosition("huabao")
	fix.DeviceID = session.DeviceID
	fix.Valid = true
	fix.FixTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, fix.SetFixCoordinates(-22.0, 114.0))
	fix.Altitude = 50
	fix.Speed = 10
	fix.Course = 90
	session.RememberPosition(fix)

	deviceTime := time.Date(2024, 1, 15, 12, 5, 0, 0, time.UTC)
	heartbeat := NewPosition("huabao")
	session.LastLocation(heartbeat, deviceTime)

	assert.True(t, heartbeat.Outdated)
	assert.Equal(t, deviceTime, heartbeat.DeviceTime)
	assert.Equal(t, fix.FixTime, heartbeat.FixTime)
	assert.True(t, heartbeat.Valid)
	assert.Equal(t, fix.Latitude(), heartbeat.Latitude())
	assert.Equal(t, fix.Longitude(), heartbeat.Longitude())
	assert.Equal(t, 50.0, heartbeat.Altitude)
}

func TestSessionLastLocationWithoutFix(t *testing.T) {
	registry := NewSessionRegistry(nil, true)
	session, err := registry.Session(&recordingConn{}, testRemote, "356938035643809")
	require.NoError(t, err)

	position := NewPosition("huabao")
	session.LastLocation(position, time.Time{})

	assert.True(t, position.Outdated)
	assert.False(t, position.DeviceTime.IsZero())
	assert.True(t, position.FixTime.IsZero())
	assert.Equal(t, 0.0, position.Latitude())
}

func TestSessionRememberPositionIgnoresNoFix(t *testing.T) {
	registry := NewSessionRegistry(nil, true)
	session, err := registry.Session(&recordingConn{}, testRemote, "356938035643809")
	require.NoError(t, err)

	// no fix time: nothing worth remembering
	session.RememberPosition(NewPosition("huabao"))

	position := NewPosition("huabao")
	session.LastLocation(position, time.Time{})
	assert.True(t, position.FixTime.IsZero())
}
