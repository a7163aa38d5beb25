//go:build no_mqtt

package main

import (
	"log/slog"

	"crownstone-home/internal/bus"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *bus.Bus, _ *Config, _ *slog.Logger) *mqttStopper {
	return &mqttStopper{}
}
