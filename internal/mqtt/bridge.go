//go:build !no_mqtt

// Package mqtt bridges the plug onto an MQTT broker: it publishes switch
// state with Home Assistant autodiscovery and accepts switch and presence
// commands.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"crownstone-home/internal/bus"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	DeviceName  string
}

// Bridge connects the event bus to MQTT.
type Bridge struct {
	client pahomqtt.Client
	bus    *bus.Bus
	prefix string
	name   string
	logger *slog.Logger
	unsub  func()
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBridge creates and connects an MQTT bridge. The broker sees the plug go
// offline through the last-will message.
func NewBridge(b *bus.Bus, cfg Config, logger *slog.Logger) (*Bridge, error) {
	ctx, cancel := context.WithCancel(context.Background())
	br := &Bridge{
		bus:    b,
		prefix: cfg.TopicPrefix,
		name:   cfg.DeviceName,
		logger: logger.With("component", "mqtt"),
		ctx:    ctx,
		cancel: cancel,
	}
	if br.name == "" {
		br.name = "crownstone"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("crownstone-home").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(cfg.TopicPrefix+"/availability", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			br.logger.Info("MQTT connected")
			br.publishAvailability("online")
			br.publishDiscovery()
			br.subscribeCommands()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			br.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		cancel()
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		cancel()
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	br.client = client
	return br, nil
}

// Start subscribes to bus events and begins publishing.
func (b *Bridge) Start() {
	b.unsub = b.bus.OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline availability, unsubscribes and disconnects.
func (b *Bridge) Stop() {
	b.cancel()
	if b.unsub != nil {
		b.unsub()
	}
	b.publishAvailability("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) handleEvent(event bus.Event) {
	switch event.Type {
	case bus.EventSwitchStateChanged:
		if p, ok := event.Data.(bus.SwitchStatePayload); ok {
			b.publishSwitchState(p)
		}
	case bus.EventBehaviourOverridden:
		if p, ok := event.Data.(bus.OverriddenPayload); ok {
			b.publish(b.prefix+"/override", []byte(onOff(p.Active)), true)
		}
	case bus.EventBehaviourMutation:
		if p, ok := event.Data.(bus.BehaviourMutationPayload); ok {
			b.publish(b.prefix+"/behaviours", mustJSON(map[string]any{
				"index": p.Index,
				"kind":  p.Kind,
			}), false)
		}
	case bus.EventPresenceMutation:
		if p, ok := event.Data.(bus.PresencePayload); ok {
			b.publish(b.prefix+"/presence", mustJSON(map[string]any{
				"bitmask": p.Bitmask,
				"kind":    p.Kind,
			}), true)
		}
	}
}

func (b *Bridge) publishSwitchState(p bus.SwitchStatePayload) {
	payload := mustJSON(map[string]any{
		"state":      onOff(p.Intensity > 0),
		"brightness": p.Intensity,
		"relay_on":   p.RelayOn,
		"dimmer":     p.DimmerLevel,
	})
	b.publish(b.prefix+"/state", payload, true)
}

func (b *Bridge) publishAvailability(state string) {
	b.publish(b.prefix+"/availability", []byte(state), true)
}

func (b *Bridge) publishDiscovery() {
	for _, msg := range buildDiscovery(b.prefix, b.name) {
		b.publish(msg.Topic, msg.Payload, true)
	}
	b.logger.Info("published HA discovery", "name", b.name)
}

func (b *Bridge) subscribeCommands() {
	setTopic := b.prefix + "/switch/set"
	token := b.client.Subscribe(setTopic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		value, err := parseSwitchPayload(msg.Payload())
		if err != nil {
			b.logger.Warn("bad switch command", "payload", string(msg.Payload()), "err", err)
			return
		}
		b.bus.Emit(bus.Event{
			Type: bus.EventSwitchCommand,
			Data: bus.SwitchCommandPayload{Value: value, Source: "mqtt"},
		})
	})
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		b.logger.Error("subscribe", "topic", setTopic, "err", token.Error())
	}

	presenceTopic := b.prefix + "/presence/+/set"
	token = b.client.Subscribe(presenceTopic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		profile, present, err := parsePresenceCommand(msg.Topic(), msg.Payload())
		if err != nil {
			b.logger.Warn("bad presence command", "topic", msg.Topic(), "err", err)
			return
		}
		b.bus.Emit(bus.Event{
			Type: bus.EventPresenceReport,
			Data: bus.PresenceReportPayload{Profile: profile, Present: present},
		})
	})
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		b.logger.Error("subscribe", "topic", presenceTopic, "err", token.Error())
	}
}

// parseSwitchPayload accepts "ON"/"OFF", "TOGGLE", a bare number, or a JSON
// object with a brightness field.
func parseSwitchPayload(payload []byte) (uint8, error) {
	s := strings.TrimSpace(string(payload))
	switch strings.ToUpper(s) {
	case "ON":
		return bus.SwitchCmdSmartOn, nil
	case "OFF":
		return 0, nil
	case "TOGGLE":
		return bus.SwitchCmdToggle, nil
	}

	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		if n > 100 {
			return 0, fmt.Errorf("brightness %d out of range", n)
		}
		return uint8(n), nil
	}

	var obj struct {
		State      string `json:"state"`
		Brightness *uint8 `json:"brightness"`
	}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return 0, fmt.Errorf("unrecognized payload %q", s)
	}
	if obj.Brightness != nil {
		if *obj.Brightness > 100 {
			return 0, fmt.Errorf("brightness %d out of range", *obj.Brightness)
		}
		return *obj.Brightness, nil
	}
	switch strings.ToUpper(obj.State) {
	case "ON":
		return bus.SwitchCmdSmartOn, nil
	case "OFF":
		return 0, nil
	}
	return 0, fmt.Errorf("unrecognized payload %q", s)
}

// parsePresenceCommand extracts the profile from topics shaped like
// <prefix>/presence/<profile>/set.
func parsePresenceCommand(topic string, payload []byte) (uint8, bool, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return 0, false, fmt.Errorf("short topic %q", topic)
	}
	profile, err := strconv.ParseUint(parts[len(parts)-2], 10, 8)
	if err != nil {
		return 0, false, fmt.Errorf("bad profile in topic %q", topic)
	}

	s := strings.ToUpper(strings.TrimSpace(string(payload)))
	switch s {
	case "ON", "TRUE", "1":
		return uint8(profile), true, nil
	case "OFF", "FALSE", "0":
		return uint8(profile), false, nil
	}
	return 0, false, fmt.Errorf("unrecognized payload %q", s)
}

func (b *Bridge) publish(topic string, payload []byte, retain bool) {
	token := b.client.Publish(topic, 1, retain, payload)
	go func() {
		if token.WaitTimeout(10*time.Second) && token.Error() != nil {
			b.logger.Error("publish", "topic", topic, "err", token.Error())
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
