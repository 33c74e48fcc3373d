package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	Huabao command encoder.
 *
 * Description:	Turns abstract commands into terminal parameter or
 *		control messages. Several device models need their own
 *		layouts: the alternative firmware takes engine control
 *		through the oil control message, the VL300 wants an
 *		ASCII control body, and the AT-passthrough models get
 *		custom data wrapped in a configuration parameter.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
)

type HuabaoProtocolEncoder struct {
	config   *Config
	sessions *SessionRegistry
}

func NewHuabaoProtocolEncoder(config *Config, sessions *SessionRegistry) *HuabaoProtocolEncoder {
	return &HuabaoProtocolEncoder{config: config, sessions: sessions}
}

// Encode produces the delimited message for a command before byte
// stuffing; the caller runs it through the frame encoder before
// writing. Commands the protocol cannot express return an error.
func (e *HuabaoProtocolEncoder) Encode(command *Command) ([]byte, error) {
	session := e.sessions.ByDeviceID(command.DeviceID)
	if session == nil {
		return nil, ErrUnknownDevice
	}

	alternative := e.config.Alternative("huabao")
	id := encodeBcd(session.UniqueID)
	model := session.Model

	switch command.Type {

	case CommandCustom:
		switch model {
		case "AL300", "GL100", "VL300":
			payload := command.GetString(CommandKeyData)
			data := make([]byte, 0, 6+len(payload))
			data = append(data, 1) // parameter count
			data = binary.BigEndian.AppendUint32(data, 0xf030)
			data = append(data, byte(len(payload)))
			data = append(data, payload...)
			return formatMessage(frameDelimiter, msgConfigurationParameters, id, false, data), nil
		case "BSJ":
			encoded, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(command.GetString(CommandKeyData)))
			if err != nil {
				encoded = []byte(command.GetString(CommandKeyData))
			}
			data := append([]byte{1}, encoded...)
			return formatMessage(frameDelimiter, msgSendTextMessage, id, false, data), nil
		default:
			raw, err := hex.DecodeString(command.GetString(CommandKeyData))
			if err != nil {
				return nil, fmt.Errorf("custom command data: %w", err)
			}
			return raw, nil
		}

	case CommandRebootDevice:
		data := []byte{1, 0x23, 1, 0x03}
		return formatMessage(frameDelimiter, msgParameterSetting, id, false, data), nil

	case CommandPositionPeriodic:
		data := make([]byte, 0, 7)
		data = append(data, 1, 0x06, 4)
		data = binary.BigEndian.AppendUint32(data, uint32(command.GetInt(CommandKeyFrequency)))
		return formatMessage(frameDelimiter, msgParameterSetting, id, false, data), nil

	case CommandAlarmArm, CommandAlarmDisarm:
		const username = "user"
		data := make([]byte, 0, 4+len(username))
		data = append(data, 1, 0x24, byte(1+len(username)))
		if command.Type == CommandAlarmArm {
			data = append(data, 0x01)
		} else {
			data = append(data, 0x00)
		}
		data = append(data, username...)
		return formatMessage(frameDelimiter, msgParameterSetting, id, false, data), nil

	case CommandEngineStop, CommandEngineResume:
		if alternative {
			data := make([]byte, 0, 7)
			if command.Type == CommandEngineStop {
				data = append(data, 0x01)
			} else {
				data = append(data, 0x00)
			}
			data = append(data, encodeBcd(time.Now().Format("060102150405"))...)
			return formatMessage(frameDelimiter, msgOilControl, id, false, data), nil
		}
		var data []byte
		if model == "VL300" {
			if command.Type == CommandEngineStop {
				data = []byte("#0;1")
			} else {
				data = []byte("#0;0")
			}
		} else {
			if command.Type == CommandEngineStop {
				data = []byte{0xf0}
			} else {
				data = []byte{0xf1}
			}
		}
		return formatMessage(frameDelimiter, msgTerminalControl, id, false, data), nil
	}

	return nil, fmt.Errorf("command %s not supported", command.Type)
}
