package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTMessage represents an outgoing MQTT message
type MQTTMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// MQTTSender wraps a channel for sending MQTT messages with helper methods
type MQTTSender struct {
	ch chan<- MQTTMessage
}

// NewMQTTSender creates a new MQTTSender wrapping the given channel
func NewMQTTSender(ch chan<- MQTTMessage) *MQTTSender {
	return &MQTTSender{ch: ch}
}

// Send sends a raw MQTTMessage
func (s *MQTTSender) Send(msg MQTTMessage) {
	s.ch <- msg
}

// PublishState publishes a plain state payload, retained so Home
// Assistant picks it up again after its own restarts.
func (s *MQTTSender) PublishState(topic, value string) {
	s.ch <- MQTTMessage{
		Topic:   topic,
		Payload: []byte(value),
		QoS:     0,
		Retain:  true,
	}
}

// PublishFloat publishes a numeric state with the given precision.
func (s *MQTTSender) PublishFloat(topic string, value float64, precision int) {
	s.PublishState(topic, fmt.Sprintf("%.*f", precision, value))
}

// CallService sends a Home Assistant service call via the Node-RED
// proxy. data may be nil.
func (s *MQTTSender) CallService(domain, service, entityID string, data map[string]any) {
	body := map[string]any{
		"domain":    domain,
		"service":   service,
		"entity_id": entityID,
	}
	if len(data) > 0 {
		body["data"] = data
	}
	payload, _ := json.Marshal(body)

	s.ch <- MQTTMessage{
		Topic:   "nodered/proxy/call_service",
		Payload: payload,
		QoS:     1,
		Retain:  false,
	}
}

// SwitchHeater turns a Home Assistant switch entity on or off.
func (s *MQTTSender) SwitchHeater(entityID string, on bool) {
	service := "turn_off"
	if on {
		service = "turn_on"
	}
	s.CallService("switch", service, entityID, nil)
}

// mqttSenderWorker handles outgoing MQTT messages, queuing them until a
// connected client is available.
func mqttSenderWorker(
	ctx context.Context,
	outgoingChan <-chan MQTTMessage,
	clientChan <-chan mqtt.Client,
) {
	log.Println("MQTT sender worker started")

	var client mqtt.Client
	var messageQueue []MQTTMessage

	publish := func(msg MQTTMessage) {
		token := client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("Failed to publish to %s: %v\n", msg.Topic, token.Error())
		}
	}

	for {
		select {
		case newClient := <-clientChan:
			log.Println("MQTT sender worker received new client")
			client = newClient

			// Process any queued messages now that we have a client
			if client != nil && client.IsConnected() {
				queuedCount := len(messageQueue)
				for _, msg := range messageQueue {
					publish(msg)
				}
				messageQueue = nil
				if queuedCount > 0 {
					log.Printf("MQTT sender worker processed %d queued messages\n", queuedCount)
				}
			}

		case msg := <-outgoingChan:
			if client != nil && client.IsConnected() {
				publish(msg)
			} else {
				messageQueue = append(messageQueue, msg)
				log.Printf("MQTT sender worker queued message (total queued: %d)\n", len(messageQueue))
			}

		case <-ctx.Done():
			log.Println("MQTT sender worker stopped")
			return
		}
	}
}
