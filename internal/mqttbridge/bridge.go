package mqttbridge

import (
	"crypto/ed25519"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fxamacker/cbor/v2"

	"github.com/uniot-io/uniot-core/internal/buffer"
	"github.com/uniot-io/uniot-core/internal/codec"
	"github.com/uniot-io/uniot-core/internal/credentials"
	"github.com/uniot-io/uniot-core/internal/eventbus"
)

// MQTTDevice is anything the bridge can route ingress payloads to,
// once its subscribed topic filter matches an incoming topic.
type MQTTDevice interface {
	Topic() string
	HandlePayload(topic string, payload []byte)
}

// onlineAnnouncement is the signed CBOR body published on connect
// (spec §4.L).
type onlineAnnouncement struct {
	Online       int    `cbor:"online"`
	ConnectionID int64  `cbor:"connection_id"`
}

// passwordPayload is the signed CBOR the bridge uses as its MQTT
// password (spec §4.L: "{device, owner, creator, timestamp} plus
// signature and algorithm metadata").
type passwordPayload struct {
	Device  string `cbor:"device"`
	Owner   string `cbor:"owner"`
	Creator string `cbor:"creator"`
	Time    int64  `cbor:"timestamp"`
}

// Bridge is the spec's MQTT bridge (component L). It implements
// eventbus.Listener so it can react to TopicNetworkConnection and
// TopicDateTime without the caller polling it.
type Bridge struct {
	mu sync.Mutex

	creds  *credentials.Credentials
	bus    *eventbus.Bus
	broker string

	client mqtt.Client

	devices []MQTTDevice

	networkUp bool
	timeSet   bool
	connected bool

	connectionID int64

	typeID buffer.FourCC
}

// New creates an unconnected Bridge. Call RegisterEntity on bus
// yourself (or via eventbus.Bus.RegisterEntity(bridge)) so it starts
// receiving TypeID/OnEventReceived callbacks.
func New(creds *credentials.Credentials, bus *eventbus.Bus, broker string) *Bridge {
	return &Bridge{
		creds:  creds,
		bus:    bus,
		broker: broker,
		typeID: buffer.NewFourCC('M', 'Q', 'T', 'T'),
	}
}

// TypeID implements eventbus.Entity.
func (b *Bridge) TypeID() buffer.FourCC { return b.typeID }

// OnEventReceived implements eventbus.Listener: tracks WiFi-up and
// time-set state, connecting once both hold, and disconnecting
// whenever WiFi drops (spec §4.L).
func (b *Bridge) OnEventReceived(topic buffer.FourCC, msg int32) {
	switch topic {
	case buffer.TopicNetworkConnection:
		b.mu.Lock()
		b.networkUp = msg != 0
		up := b.networkUp
		ts := b.timeSet
		b.mu.Unlock()
		if up && ts {
			b.connect()
		} else if !up {
			b.disconnect()
		}
	case buffer.TopicDateTime:
		b.mu.Lock()
		b.timeSet = true
		up := b.networkUp
		b.mu.Unlock()
		if up {
			b.connect()
		}
	}
}

// AddDevice registers a device and, if already connected, subscribes
// it immediately.
func (b *Bridge) AddDevice(d MQTTDevice) {
	b.mu.Lock()
	b.devices = append(b.devices, d)
	client := b.client
	b.mu.Unlock()

	if client != nil {
		client.Subscribe(d.Topic(), 1, b.onMessage)
	}
}

// connect builds client options (client-id, username = public key,
// password = signed CBOR) and connects, publishing the signed online
// announcement and registering the matching retained LWT offline
// message, per spec §4.L.
func (b *Bridge) connect() {
	b.mu.Lock()
	if b.connected {
		b.mu.Unlock()
		return
	}
	b.connectionID++
	connID := b.connectionID
	deviceID := b.creds.DeviceID()
	ownerID := b.creds.OwnerID()
	b.mu.Unlock()

	offline, err := b.signedPayload(onlineAnnouncement{Online: 0, ConnectionID: connID})
	if err != nil {
		return
	}
	online, err := b.signedPayload(onlineAnnouncement{Online: 1, ConnectionID: connID})
	if err != nil {
		return
	}
	password, err := b.signedPassword()
	if err != nil {
		return
	}

	pb := PathBuilder{OwnerID: ownerID}
	statusTopic := pb.DeviceSubtopic(deviceID, "status")

	opts := mqtt.NewClientOptions().
		AddBroker(b.broker).
		SetClientID(ClientID(deviceID)).
		SetUsername(b.creds.KeyID()).
		SetPassword(string(password)).
		SetWill(statusTopic, string(offline), 1, true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		return
	}

	client.Publish(statusTopic, 1, true, online)

	b.mu.Lock()
	b.client = client
	b.connected = true
	devices := make([]MQTTDevice, len(b.devices))
	copy(devices, b.devices)
	b.mu.Unlock()

	for _, d := range devices {
		client.Subscribe(d.Topic(), 1, b.onMessage)
	}
}

func (b *Bridge) disconnect() {
	b.mu.Lock()
	client := b.client
	b.client = nil
	b.connected = false
	b.mu.Unlock()

	if client != nil {
		client.Disconnect(250)
	}
}

// RenewSubscriptions unsubscribes and resubscribes every device,
// invoked after owner changes (spec §4.L "renewSubscriptions()").
func (b *Bridge) RenewSubscriptions() {
	b.mu.Lock()
	client := b.client
	devices := make([]MQTTDevice, len(b.devices))
	copy(devices, b.devices)
	b.mu.Unlock()

	if client == nil {
		return
	}
	for _, d := range devices {
		client.Unsubscribe(d.Topic())
	}
	for _, d := range devices {
		client.Subscribe(d.Topic(), 1, b.onMessage)
	}
}

// onMessage is the paho message handler: parses the inbound COSE_Sign1
// envelope's structure and forwards the inner payload to every device
// whose subscribed topic matches the incoming topic by MQTT wildcard
// rules (spec §4.L). Inbound scripts/events are signed by the
// owner/creator account, not the device's own key, so there is no key
// on the device to verify against; ingress is structural-parse-only,
// matching the original firmware (spec §6: "accepted only if the outer
// CBOR parses as COSE_Sign1 with matching structure").
func (b *Bridge) onMessage(_ mqtt.Client, msg mqtt.Message) {
	inner, err := codec.ParseUnverified(msg.Payload())
	if err != nil {
		return
	}

	b.mu.Lock()
	devices := make([]MQTTDevice, len(b.devices))
	copy(devices, b.devices)
	b.mu.Unlock()

	for _, d := range devices {
		if IsTopicMatch(d.Topic(), msg.Topic()) {
			d.HandlePayload(msg.Topic(), inner)
		}
	}
}

func (b *Bridge) signedPayload(v interface{}) ([]byte, error) {
	raw, err := cbor.Marshal(v)
	if err != nil {
		return nil, err
	}
	return codec.Sign(raw, bridgeSigner{b.creds}, nil)
}

func (b *Bridge) signedPassword() ([]byte, error) {
	payload := passwordPayload{
		Device:  b.creds.DeviceID(),
		Owner:   b.creds.OwnerID(),
		Creator: b.creds.CreatorID(),
		Time:    nowUnix(),
	}
	return b.signedPayload(payload)
}

// bridgeSigner adapts credentials.Credentials to codec.Signer.
type bridgeSigner struct {
	creds *credentials.Credentials
}

func (s bridgeSigner) Sign(data []byte) []byte              { return s.creds.Sign(data) }
func (s bridgeSigner) PublicKey() ed25519.PublicKey         { return s.creds.PublicKey() }

var nowUnix = func() int64 { return time.Now().Unix() }
