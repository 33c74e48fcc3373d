package trackgw

// Command types understood by at least one protocol encoder.
const (
	CommandCustom           = "custom"
	CommandRebootDevice     = "rebootDevice"
	CommandPositionPeriodic = "positionPeriodic"
	CommandAlarmArm         = "alarmArm"
	CommandAlarmDisarm      = "alarmDisarm"
	CommandEngineStop       = "engineStop"
	CommandEngineResume     = "engineResume"
)

// Command attribute keys.
const (
	CommandKeyFrequency = "frequency" // seconds, positionPeriodic
	CommandKeyData      = "data"      // payload, custom
)

// Command is an abstract outbound request for a device. The encoder
// for the device's protocol turns it into wire bytes.
type Command struct {
	DeviceID   int64
	Type       string
	Attributes map[string]any
}

func NewCommand(deviceID int64, commandType string) *Command {
	return &Command{
		DeviceID:   deviceID,
		Type:       commandType,
		Attributes: make(map[string]any),
	}
}

func (c *Command) Set(key string, value any) *Command {
	c.Attributes[key] = value
	return c
}

func (c *Command) GetString(key string) string {
	if v, ok := c.Attributes[key].(string); ok {
		return v
	}
	return ""
}

func (c *Command) GetInt(key string) int {
	switch v := c.Attributes[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
