package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Telemetry subtopics consumed by the core.
const (
	SubtopicPassingBy   = "passingByDetection"
	SubtopicPowerStatus = "powerStatus"
)

// Setting subtopics published by the core. Payloads are retained so a door
// that reboots picks up its current setting on subscribe.
const (
	SettingPowerSaving = "powerSaving"
	SettingDenialEntry = "denialEntrySetting"
	SettingDenialExit  = "denialExitSetting"
)

// DefaultDeviceName is the node name doors report under when none is known.
const DefaultDeviceName = "NodeMCU"

// deviceTopicLevels is the number of levels in <base>/<customer>/<device>@<seq>/<subtopic>.
const deviceTopicLevels = 4

// Topics provides builders for pet tracker MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{Base: "pettracker"}
//	topics.DeviceSetting("alice", "NodeMCU", 2, mqtt.SettingPowerSaving)
//	// Returns: "pettracker/alice/NodeMCU@2/powerSaving"
type Topics struct {
	// Base is the first topic level reserved for the application.
	Base string
}

// DeviceTopic is a decoded device topic.
type DeviceTopic struct {
	Customer   string
	DeviceName string
	SeqNumber  int
	Subtopic   string
}

// Telemetry returns the subscription pattern for one telemetry subtopic across
// every customer and device.
//
// Example: pettracker/+/+/passingByDetection
func (t Topics) Telemetry(subtopic string) string {
	return fmt.Sprintf("%s/+/+/%s", t.Base, subtopic)
}

// DeviceSetting returns the topic a setting is published on for one door.
//
// Example: pettracker/alice/NodeMCU@2/denialEntrySetting
func (t Topics) DeviceSetting(customer, deviceName string, seqNumber int, setting string) string {
	return fmt.Sprintf("%s/%s/%s@%d/%s", t.Base, customer, deviceName, seqNumber, setting)
}

// SystemStatus returns the topic for core online/offline status (LWT).
//
// Example: pettracker/system/status
func (t Topics) SystemStatus() string {
	return t.Base + "/system/status"
}

// ParseDeviceTopic decodes <base>/<customer>/<device>@<seq>/<subtopic>.
// The base level must match t.Base.
func (t Topics) ParseDeviceTopic(topic string) (DeviceTopic, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != deviceTopicLevels {
		return DeviceTopic{}, fmt.Errorf("%w: %q has %d levels, want %d", ErrInvalidTopic, topic, len(parts), deviceTopicLevels)
	}
	if parts[0] != t.Base {
		return DeviceTopic{}, fmt.Errorf("%w: %q is outside base %q", ErrInvalidTopic, topic, t.Base)
	}

	at := strings.LastIndex(parts[2], "@")
	if at <= 0 || at == len(parts[2])-1 {
		return DeviceTopic{}, fmt.Errorf("%w: device level %q is not <name>@<seq>", ErrInvalidTopic, parts[2])
	}
	seq, err := strconv.Atoi(parts[2][at+1:])
	if err != nil || seq < 0 {
		return DeviceTopic{}, fmt.Errorf("%w: bad sequence number in %q", ErrInvalidTopic, parts[2])
	}
	if parts[1] == "" || parts[3] == "" {
		return DeviceTopic{}, fmt.Errorf("%w: empty level in %q", ErrInvalidTopic, topic)
	}

	return DeviceTopic{
		Customer:   parts[1],
		DeviceName: parts[2][:at],
		SeqNumber:  seq,
		Subtopic:   parts[3],
	}, nil
}
