//go:build !no_mqtt

package mqtt

// Home Assistant MQTT autodiscovery for the plug: one dimmable light plus a
// binary sensor for the override flag.

type discoveryMsg struct {
	Topic   string
	Payload []byte
}

type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	CommandTopic      string   `json:"command_topic,omitempty"`
	AvailabilityTopic string   `json:"availability_topic"`
	Device            haDevice `json:"device"`

	// Light specific.
	Schema          string `json:"schema,omitempty"`
	Brightness      bool   `json:"brightness,omitempty"`
	BrightnessScale int    `json:"brightness_scale,omitempty"`

	// Binary sensor specific.
	PayloadOn  string `json:"payload_on,omitempty"`
	PayloadOff string `json:"payload_off,omitempty"`
}

func buildDiscovery(prefix, name string) []discoveryMsg {
	device := haDevice{
		Identifiers:  []string{"crownstone_" + name},
		Name:         name,
		Manufacturer: "Crownstone",
		Model:        "smart plug",
	}

	light := haDiscovery{
		Name:              name,
		UniqueID:          "crownstone_" + name + "_light",
		StateTopic:        prefix + "/state",
		CommandTopic:      prefix + "/switch/set",
		AvailabilityTopic: prefix + "/availability",
		Device:            device,
		Schema:            "json",
		Brightness:        true,
		BrightnessScale:   100,
	}

	override := haDiscovery{
		Name:              name + " override",
		UniqueID:          "crownstone_" + name + "_override",
		StateTopic:        prefix + "/override",
		AvailabilityTopic: prefix + "/availability",
		Device:            device,
		PayloadOn:         "ON",
		PayloadOff:        "OFF",
	}

	return []discoveryMsg{
		{
			Topic:   "homeassistant/light/crownstone_" + name + "/light/config",
			Payload: mustJSON(light),
		},
		{
			Topic:   "homeassistant/binary_sensor/crownstone_" + name + "/override/config",
			Payload: mustJSON(override),
		},
	}
}
