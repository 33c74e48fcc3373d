package trackgw

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRoster(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const testRoster = `
devices:
  - id: 7
    unique_id: "356938035643809"
    model: VL300
    attributes:
      timezone: GMT+02:00
  - unique_id: "867032050000001"
    model: G1C Pro
  - unique_id: "8670320*"
    model: MV810G
  - unique_id: "86*"
    model: generic
`

func TestDirectoryExactLookup(t *testing.T) {
	directory, err := LoadDeviceDirectory(writeRoster(t, testRoster))
	require.NoError(t, err)

	info, err := directory.Lookup("356938035643809")
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.ID)
	assert.Equal(t, "VL300", info.Model)
	assert.Equal(t, "GMT+02:00", info.Attributes[KeyTimezone])

	// entries without an explicit id are numbered past the highest
	info, err = directory.Lookup("867032050000001")
	require.NoError(t, err)
	assert.Equal(t, int64(8), info.ID)
	assert.Equal(t, "G1C Pro", info.Model)
}

func TestDirectoryWildcardMatch(t *testing.T) {
	directory, err := LoadDeviceDirectory(writeRoster(t, testRoster))
	require.NoError(t, err)

	// the longer prefix wins over the generic one
	info, err := directory.Lookup("867032059999999")
	require.NoError(t, err)
	assert.Equal(t, "MV810G", info.Model)

	generic, err := directory.Lookup("861111111111111")
	require.NoError(t, err)
	assert.Equal(t, "generic", generic.Model)

	// minted devices keep their id on later lookups
	again, err := directory.Lookup("867032059999999")
	require.NoError(t, err)
	assert.Equal(t, info.ID, again.ID)
	assert.NotEqual(t, info.ID, generic.ID)
}

func TestDirectoryMiss(t *testing.T) {
	directory, err := LoadDeviceDirectory(writeRoster(t, testRoster))
	require.NoError(t, err)

	_, err = directory.Lookup("123456789012345")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestDirectorySize(t *testing.T) {
	directory, err := LoadDeviceDirectory(writeRoster(t, testRoster))
	require.NoError(t, err)

	assert.Equal(t, 2, directory.Size())
	_, err = directory.Lookup("867032059999999")
	require.NoError(t, err)
	assert.Equal(t, 3, directory.Size())
}

func TestDirectoryRejectsBadRosters(t *testing.T) {
	_, err := LoadDeviceDirectory(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = LoadDeviceDirectory(writeRoster(t, "devices: [\n"))
	assert.Error(t, err)

	_, err = LoadDeviceDirectory(writeRoster(t, "devices:\n  - model: VL300\n"))
	assert.Error(t, err)

	duplicate := `
devices:
  - unique_id: "123"
  - unique_id: "123"
`
	_, err = LoadDeviceDirectory(writeRoster(t, duplicate))
	assert.Error(t, err)
}

func TestDirectoryBacksSessionRegistry(t *testing.T) {
	directory, err := LoadDeviceDirectory(writeRoster(t, testRoster))
	require.NoError(t, err)
	registry := NewSessionRegistry(directory, false)

	session, err := registry.Session(&recordingConn{}, testRemote, "356938035643809")
	require.NoError(t, err)
	assert.Equal(t, int64(7), session.DeviceID)
	assert.Equal(t, "VL300", session.Model)

	// roster timezone seeds the session attribute
	_, offset := time.Now().In(session.TimeZone()).Zone()
	assert.Equal(t, 2*3600, offset)

	_, err = registry.Session(&recordingConn{}, testRemote, "999999999999999")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}
