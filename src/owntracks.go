package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	OwnTracks HTTP protocol decoder.
 *
 * Description:	The OwnTracks app posts one JSON document per report.
 *		Only "_type":"location" documents carry a fix; every
 *		other type is acknowledged and dropped. The "tst"
 *		field is the fix timestamp and "sent", when present,
 *		is the upload time. Speed arrives in km/h and the
 *		odometer in kilometers.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type ownTracksMessage struct {
	Type            string   `json:"_type"`
	TrackerID       string   `json:"tid"`
	Timestamp       int64    `json:"tst"`
	Sent            *int64   `json:"sent"`
	Latitude        float64  `json:"lat"`
	Longitude       float64  `json:"lon"`
	Velocity        *int     `json:"vel"`
	Altitude        *int     `json:"alt"`
	Course          *int     `json:"cog"`
	Accuracy        *int     `json:"acc"`
	Event           *string  `json:"t"`
	ReportType      *int     `json:"rty"`
	BatteryLevel    *int     `json:"batt"`
	ExternalVoltage *float64 `json:"uext"`
	BatteryVoltage  *float64 `json:"ubatt"`
	Vin             *string  `json:"vin"`
	Name            *string  `json:"name"`
	Rpm             *int     `json:"rpm"`
	Ignition        *bool    `json:"ign"`
	Motion          *bool    `json:"motion"`
	Odometer        *float64 `json:"odometer"`
	HoursMoving     *float64 `json:"hmc"`
	AnalogCount     *int     `json:"anum"`

	extras map[string]json.RawMessage
}

func (m *ownTracksMessage) UnmarshalJSON(data []byte) error {
	type plain ownTracksMessage
	if err := json.Unmarshal(data, (*plain)(m)); err != nil {
		return err
	}
	return json.Unmarshal(data, &m.extras)
}

// OwnTracksProtocolDecoder serves the OwnTracks HTTP endpoint and
// hands decoded positions to the consumer.
type OwnTracksProtocolDecoder struct {
	protocol string
	sessions *SessionRegistry
	consumer PositionConsumer
}

func NewOwnTracksProtocolDecoder(sessions *SessionRegistry, consumer PositionConsumer) *OwnTracksProtocolDecoder {
	return &OwnTracksProtocolDecoder{protocol: "owntracks", sessions: sessions, consumer: consumer}
}

func (d *OwnTracksProtocolDecoder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var msg ownTracksMessage
	if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if msg.Type != "location" {
		w.WriteHeader(http.StatusOK)
		return
	}

	session, err := d.sessions.Session(nil, nil, msg.TrackerID)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	position, err := d.decodePosition(session, &msg)
	if err != nil {
		Logger.Debug("discarding report", "protocol", d.protocol, "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	session.RememberPosition(position)
	if d.consumer != nil {
		d.consumer.Consume(position)
	}
	w.WriteHeader(http.StatusOK)
}

func (d *OwnTracksProtocolDecoder) decodePosition(session *DeviceSession, msg *ownTracksMessage) (*Position, error) {
	position := NewPosition(d.protocol)
	position.DeviceID = session.DeviceID

	position.FixTime = time.Unix(msg.Timestamp, 0).UTC()
	if msg.Sent != nil {
		position.DeviceTime = time.Unix(*msg.Sent, 0).UTC()
	}

	position.Valid = true
	if err := position.SetFixCoordinates(msg.Latitude, msg.Longitude); err != nil {
		return nil, err
	}

	if msg.Velocity != nil {
		position.Speed = knotsFromKph(float64(*msg.Velocity))
	}
	if msg.Altitude != nil {
		position.Altitude = float64(*msg.Altitude)
	}
	if msg.Course != nil {
		position.Course = float64(*msg.Course)
	}
	if msg.Accuracy != nil {
		position.Accuracy = float64(*msg.Accuracy)
	}
	if msg.Event != nil {
		reportType := -1
		if msg.ReportType != nil {
			reportType = *msg.ReportType
		}
		decodeOwnTracksEvent(position, *msg.Event, reportType)
		position.Set(KeyEvent, *msg.Event)
	}
	if msg.BatteryLevel != nil {
		position.Set(KeyBatteryLevel, *msg.BatteryLevel)
	}
	if msg.ExternalVoltage != nil {
		position.Set(KeyPower, *msg.ExternalVoltage)
	}
	if msg.BatteryVoltage != nil {
		position.Set(KeyBattery, *msg.BatteryVoltage)
	}
	if msg.Vin != nil {
		position.Set(KeyVin, *msg.Vin)
	}
	if msg.Name != nil {
		position.Set(KeyVin, *msg.Name)
	}
	if msg.Rpm != nil {
		position.Set(KeyRpm, *msg.Rpm)
	}
	if msg.Ignition != nil {
		position.Set(KeyIgnition, *msg.Ignition)
	}
	if msg.Motion != nil {
		position.Set(KeyMotion, *msg.Motion)
	}
	if msg.Odometer != nil {
		position.Set(KeyOdometer, *msg.Odometer*1000.0)
	}
	if msg.HoursMoving != nil {
		position.Set(KeyHours, *msg.HoursMoving/3600.0)
	}

	if msg.AnalogCount != nil {
		for i := 0; i < *msg.AnalogCount; i++ {
			index := fmt.Sprintf("%02d", i)
			if raw, ok := msg.extras["adda-"+index]; ok {
				var value string
				if json.Unmarshal(raw, &value) == nil {
					position.Set(PrefixAdc+fmt.Sprint(i+1), value)
				}
			}
			if raw, ok := msg.extras["temp_c-"+index]; ok {
				var value float64
				if json.Unmarshal(raw, &value) == nil {
					position.Set(PrefixTemp+fmt.Sprint(i+1), value)
				}
			}
		}
	}

	return position, nil
}

func decodeOwnTracksEvent(position *Position, event string, reportType int) {
	switch event {
	case "9":
		position.AddAlarm(AlarmLowBattery)
	case "1":
		position.AddAlarm(AlarmPowerOn)
	case "i":
		position.Set(KeyIgnition, true)
	case "I":
		position.Set(KeyIgnition, false)
	case "E":
		position.AddAlarm(AlarmPowerRestored)
	case "e":
		position.AddAlarm(AlarmPowerCut)
	case "!":
		position.AddAlarm(AlarmTow)
	case "s":
		position.AddAlarm(AlarmOverspeed)
	case "h":
		switch reportType {
		case 0, 3:
			position.AddAlarm(AlarmHardBraking)
		case 1, 4:
			position.AddAlarm(AlarmHardAcceleration)
		case 2, 5:
			position.AddAlarm(AlarmHardCornering)
		}
	}
}
