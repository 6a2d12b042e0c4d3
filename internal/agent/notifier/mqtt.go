// Package notifier publishes the agent's display traffic to an MQTT broker
// so fleet tooling can observe charge state and update activity remotely.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/powerdock-io/powerdock/internal/agent/core"
	"github.com/powerdock-io/powerdock/pkg/log"
	"github.com/powerdock-io/powerdock/pkg/mqtt"
)

const publishTimeout = 3 * time.Second

// statusMessage is the wire form of a transient status notification.
type statusMessage struct {
	Text     string `json:"text"`
	Severity string `json:"severity"`
	Time     string `json:"time"`
}

// moduleState is the wire form of a per-module charge sample.
type moduleState struct {
	Module  int     `json:"module"`
	Percent int     `json:"percent"`
	Voltage float64 `json:"voltage"`
}

type batteryDetail struct {
	Module       int    `json:"module"`
	ChargingTime string `json:"charging_time"`
	EnergyWh     string `json:"energy_wh"`
	ChargeAh     string `json:"charge_ah"`
	MinTemp      string `json:"min_temp"`
	MaxTemp      string `json:"max_temp"`
	Health       string `json:"health"`
	Charge       string `json:"charge"`
}

type updateEvent struct {
	Event   string `json:"event"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// MqttNotifier is a display surface backed by an MQTT broker. Publishing is
// best-effort: a broker outage must never stall the poll loop, so failures
// are logged and dropped while the paho layer reconnects in the background.
type MqttNotifier struct {
	client    mqtt.Client
	topicRoot string
	deviceID  string
	logger    log.Logger

	now func() time.Time
}

func NewMqttNotifier(client mqtt.Client, topicRoot, deviceID string, logger log.Logger) *MqttNotifier {
	return &MqttNotifier{
		client:    client,
		topicRoot: topicRoot,
		deviceID:  deviceID,
		logger:    logger.WithName("notifier"),
		now:       time.Now,
	}
}

func (n *MqttNotifier) PresentMessage(text string, severity core.Severity) {
	n.publish(n.topic("status"), 1, false, statusMessage{
		Text:     text,
		Severity: string(severity),
		Time:     n.now().UTC().Format(time.RFC3339),
	})
}

func (n *MqttNotifier) PresentUpdateDecision(version string) {
	// Retained so tooling that connects later still sees the pending
	// decision.
	n.publish(n.topic("update"), 1, true, updateEvent{
		Event:   "awaiting_confirmation",
		Version: version,
		Time:    n.now().UTC().Format(time.RFC3339),
	})
}

func (n *MqttNotifier) UpdateModule(index, percent int, voltage float64) {
	// Retained QoS 0: subscribers get the latest sample on connect, and a
	// dropped sample is replaced half a second later anyway.
	n.publish(n.topic(fmt.Sprintf("modules/%d", index+1)), 0, true, moduleState{
		Module:  index + 1,
		Percent: percent,
		Voltage: voltage,
	})
}

func (n *MqttNotifier) UpdateBatteryDetail(detail core.BatteryDetail) {
	n.publish(n.topic(fmt.Sprintf("battery/%d", detail.ModuleID)), 0, true, batteryDetail{
		Module:       detail.ModuleID,
		ChargingTime: detail.ChargingTime,
		EnergyWh:     detail.EnergyWh,
		ChargeAh:     detail.ChargeAh,
		MinTemp:      detail.MinTemp,
		MaxTemp:      detail.MaxTemp,
		Health:       detail.Health,
		Charge:       detail.Charge,
	})
}

func (n *MqttNotifier) topic(suffix string) string {
	return fmt.Sprintf("%s/%s/%s", n.topicRoot, n.deviceID, suffix)
}

func (n *MqttNotifier) publish(topic string, qos int, retain bool, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		n.logger.Warn("notifier payload marshal failed", "topic", topic, "err", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := n.client.Publish(ctx, topic, qos, retain, payload); err != nil {
		n.logger.Debug("notifier publish failed", "topic", topic, "err", err.Error())
	}
}
