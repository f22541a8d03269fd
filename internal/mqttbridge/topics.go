// Package mqttbridge implements the MQTT bridge (spec §4.L): it
// connects only once WiFi is up and system time is set, announces
// itself with a signed online/offline pair, builds per-device topic
// subscriptions under the account/device namespace, and forwards
// ingress payloads to every device whose topic matches by MQTT wildcard
// rules. Ingress envelopes are parsed as COSE_Sign1 without checking
// their signature (codec.ParseUnverified).
//
// Grounded on github.com/eclipse/paho.mqtt.golang's client/options/
// token shape (the pack's MQTT dependency; usage pattern confirmed in
// other_examples' dunnart.go), wired to the device's own Credentials
// (D) for signing and internal/codec (B) for the COSE_Sign1 envelope.
package mqttbridge

import "strings"

// PathBuilder builds the "PUBLIC_UNIOT/users/<ownerId>/..." topic
// paths every MQTTDevice subscribes under (spec §4.L).
type PathBuilder struct {
	OwnerID string
}

// DeviceSubtopic builds PUBLIC_UNIOT/users/<owner>/devices/<deviceId>/<subtopic>.
func (p PathBuilder) DeviceSubtopic(deviceID, subtopic string) string {
	return strings.Join([]string{"PUBLIC_UNIOT", "users", p.OwnerID, "devices", deviceID, subtopic}, "/")
}

// GroupSubtopic builds PUBLIC_UNIOT/users/<owner>/groups/<groupId>/<subtopic>.
func (p PathBuilder) GroupSubtopic(groupID, subtopic string) string {
	return strings.Join([]string{"PUBLIC_UNIOT", "users", p.OwnerID, "groups", groupID, subtopic}, "/")
}

// ClientID builds the MQTT client identifier for deviceID (spec §4.L:
// `"device:<deviceId>"`).
func ClientID(deviceID string) string {
	return "device:" + deviceID
}

// IsTopicMatch reports whether topic matches filter under MQTT
// wildcard rules: `+` matches exactly one segment, `#` matches the
// rest of the topic (must be the final segment).
func IsTopicMatch(filter, topic string) bool {
	fSegs := strings.Split(filter, "/")
	tSegs := strings.Split(topic, "/")

	for i, f := range fSegs {
		if f == "#" {
			return true
		}
		if i >= len(tSegs) {
			return false
		}
		if f == "+" {
			continue
		}
		if f != tSegs[i] {
			return false
		}
	}
	return len(fSegs) == len(tSegs)
}
