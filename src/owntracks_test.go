package trackgw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postOwnTracks(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestOwnTracksLocation(t *testing.T) {
	sink := &collectingConsumer{}
	handler := NewOwnTracksProtocolDecoder(NewSessionRegistry(nil, true), sink)

	rec := postOwnTracks(t, handler,
		`{"_type":"location","tid":"AB","tst":1700000000,"lat":50.0,"lon":10.0,"vel":72,"batt":85,"t":"s"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	positions := sink.snapshot()
	require.Len(t, positions, 1)
	position := positions[0]

	assert.Equal(t, "owntracks", position.Protocol)
	assert.True(t, position.DeviceTime.IsZero())
	expected := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	assert.Equal(t, expected.Unix(), position.FixTime.Unix())
	assert.True(t, position.Valid)

	// Germany: outside the datum rectangle, identity transform
	assert.Equal(t, 50.0, position.Latitude())
	assert.Equal(t, 10.0, position.Longitude())

	assert.InDelta(t, knotsFromKph(72), position.Speed, 1e-9)
	assert.Equal(t, 85, position.Attributes[KeyBatteryLevel])
	assert.Equal(t, "s", position.Attributes[KeyEvent])
	assert.Equal(t, AlarmOverspeed, position.Attributes[KeyAlarm])
}

func TestOwnTracksSentTimestamp(t *testing.T) {
	sink := &collectingConsumer{}
	handler := NewOwnTracksProtocolDecoder(NewSessionRegistry(nil, true), sink)

	rec := postOwnTracks(t, handler,
		`{"_type":"location","tid":"AB","tst":1700000000,"sent":1700000060,"lat":1.0,"lon":2.0}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	positions := sink.snapshot()
	require.Len(t, positions, 1)
	assert.Equal(t, int64(1700000060), positions[0].DeviceTime.Unix())
	assert.Equal(t, int64(1700000000), positions[0].FixTime.Unix())
}

func TestOwnTracksNonLocationAcknowledged(t *testing.T) {
	sink := &collectingConsumer{}
	handler := NewOwnTracksProtocolDecoder(NewSessionRegistry(nil, true), sink)

	rec := postOwnTracks(t, handler, `{"_type":"lwt","tid":"AB"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sink.snapshot())
}

func TestOwnTracksMalformedBody(t *testing.T) {
	handler := NewOwnTracksProtocolDecoder(NewSessionRegistry(nil, true), nil)

	rec := postOwnTracks(t, handler, `{"_type":"location",`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOwnTracksCoordinateOutOfRange(t *testing.T) {
	sink := &collectingConsumer{}
	handler := NewOwnTracksProtocolDecoder(NewSessionRegistry(nil, true), sink)

	rec := postOwnTracks(t, handler,
		`{"_type":"location","tid":"AB","tst":1700000000,"lat":95.0,"lon":10.0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, sink.snapshot())
}

func TestOwnTracksUnknownDevice(t *testing.T) {
	handler := NewOwnTracksProtocolDecoder(NewSessionRegistry(nil, false), nil)

	rec := postOwnTracks(t, handler,
		`{"_type":"location","tid":"AB","tst":1700000000,"lat":1.0,"lon":2.0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOwnTracksHarshDrivingEvents(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"braking", `{"_type":"location","tid":"AB","tst":1,"lat":1,"lon":2,"t":"h","rty":0}`, AlarmHardBraking},
		{"acceleration", `{"_type":"location","tid":"AB","tst":1,"lat":1,"lon":2,"t":"h","rty":4}`, AlarmHardAcceleration},
		{"cornering", `{"_type":"location","tid":"AB","tst":1,"lat":1,"lon":2,"t":"h","rty":5}`, AlarmHardCornering},
		{"tow", `{"_type":"location","tid":"AB","tst":1,"lat":1,"lon":2,"t":"!"}`, AlarmTow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &collectingConsumer{}
			handler := NewOwnTracksProtocolDecoder(NewSessionRegistry(nil, true), sink)

			rec := postOwnTracks(t, handler, tt.body)
			assert.Equal(t, http.StatusOK, rec.Code)

			positions := sink.snapshot()
			require.Len(t, positions, 1)
			assert.Equal(t, tt.expected, positions[0].Attributes[KeyAlarm])
		})
	}
}

func TestOwnTracksAnalogAndTemperature(t *testing.T) {
	sink := &collectingConsumer{}
	handler := NewOwnTracksProtocolDecoder(NewSessionRegistry(nil, true), sink)

	rec := postOwnTracks(t, handler,
		`{"_type":"location","tid":"AB","tst":1,"lat":1,"lon":2,"anum":2,"adda-00":"3.31","temp_c-01":21.5}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	positions := sink.snapshot()
	require.Len(t, positions, 1)
	position := positions[0]

	assert.Equal(t, "3.31", position.Attributes[PrefixAdc+"1"])
	assert.Equal(t, 21.5, position.Attributes[PrefixTemp+"2"])
}

func TestOwnTracksVehicleFields(t *testing.T) {
	sink := &collectingConsumer{}
	handler := NewOwnTracksProtocolDecoder(NewSessionRegistry(nil, true), sink)

	rec := postOwnTracks(t, handler,
		`{"_type":"location","tid":"AB","tst":1,"lat":1,"lon":2,`+
			`"ign":true,"motion":false,"rpm":2100,"odometer":12.5,"hmc":7200.0,"uext":12.6,"ubatt":3.9}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	positions := sink.snapshot()
	require.Len(t, positions, 1)
	position := positions[0]

	assert.Equal(t, true, position.Attributes[KeyIgnition])
	assert.Equal(t, false, position.Attributes[KeyMotion])
	assert.Equal(t, 2100, position.Attributes[KeyRpm])
	assert.Equal(t, 12500.0, position.Attributes[KeyOdometer])
	assert.Equal(t, 2.0, position.Attributes[KeyHours])
	assert.Equal(t, 12.6, position.Attributes[KeyPower])
	assert.Equal(t, 3.9, position.Attributes[KeyBattery])
}
