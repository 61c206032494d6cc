package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicRoot is the first topic level used by the device firmware.
const DefaultTopicRoot = "esp32"

// TopicPrefixCoordinator is the base for coordinator-owned topics.
const TopicPrefixCoordinator = "guessfleet/coordinator"

// Topics builds the device topic hierarchy under a configurable root.
//
//	topics := mqtt.NewTopics("esp32")
//	topics.Challenge("a4:cf:12:00:00:01")
//	// Returns: "esp32/a4:cf:12:00:00:01/random"
//
// The zero value uses DefaultTopicRoot.
type Topics struct {
	Root string
}

// NewTopics returns a Topics rooted at root.
func NewTopics(root string) Topics {
	return Topics{Root: root}
}

func (t Topics) root() string {
	if t.Root == "" {
		return DefaultTopicRoot
	}
	return t.Root
}

// Connect is where devices announce themselves.
//
// Example: esp32/connect
func (t Topics) Connect() string {
	return t.root() + "/connect"
}

// Disconnect is where devices announce they are leaving.
//
// Example: esp32/disconnect
func (t Topics) Disconnect() string {
	return t.root() + "/disconnect"
}

// Challenge is the coordinator-to-device topic carrying a new round.
//
// Example: esp32/{id}/random
func (t Topics) Challenge(deviceID string) string {
	return fmt.Sprintf("%s/%s/random", t.root(), deviceID)
}

// Response is the device-to-coordinator topic carrying acks and guesses.
//
// Example: esp32/{id}/response
func (t Topics) Response(deviceID string) string {
	return fmt.Sprintf("%s/%s/response", t.root(), deviceID)
}

// Result is the coordinator-to-device topic carrying scores and game over.
//
// Example: esp32/{id}/result
func (t Topics) Result(deviceID string) string {
	return fmt.Sprintf("%s/%s/result", t.root(), deviceID)
}

// DeviceFromResponse extracts the device id from a response topic.
// It reports false for any other topic shape.
func (t Topics) DeviceFromResponse(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != t.root() || parts[2] != "response" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// CoordinatorStatus is the retained online/offline topic, also used for the LWT.
//
// Example: guessfleet/coordinator/status
func (Topics) CoordinatorStatus() string {
	return TopicPrefixCoordinator + "/status"
}
