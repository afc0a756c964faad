package main

import (
	"context"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// mqttWorker manages the MQTT connection, subscribes to sensor and
// command topics, and forwards messages to the readings and zone
// workers. Sensor payloads are never dropped: "unavailable" and friends
// flow through so the readings table can mark the sensor absent.
func mqttWorker(
	ctx context.Context,
	broker string,
	sensorTopics, commandTopics []string,
	username, password string,
	msgChan chan<- SensorMessage,
	cmdChan chan<- SensorMessage,
	clientChan chan<- mqtt.Client,
) {
	commandSet := make(map[string]bool, len(commandTopics))
	for _, t := range commandTopics {
		commandSet[t] = true
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:1883", broker))
	opts.SetClientID("floorctl-" + uuid.NewString()[:8])
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v\n", err)
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("Connected to MQTT broker at %s\n", broker)

		// Send the new client to the sender worker
		select {
		case clientChan <- client:
			log.Println("Sent new MQTT client to sender worker")
		case <-ctx.Done():
			return
		}

		handler := func(client mqtt.Client, msg mqtt.Message) {
			sensorMsg := SensorMessage{
				Topic: msg.Topic(),
				Value: string(msg.Payload()),
			}

			target := msgChan
			if commandSet[msg.Topic()] {
				target = cmdChan
			}
			select {
			case target <- sensorMsg:
			case <-ctx.Done():
			}
		}

		topics := make([]string, 0, len(sensorTopics)+len(commandTopics))
		topics = append(topics, sensorTopics...)
		topics = append(topics, commandTopics...)
		for _, topic := range topics {
			token := client.Subscribe(topic, 0, handler)
			if token.Wait() && token.Error() != nil {
				log.Printf("Failed to subscribe to topic %s: %v\n", topic, token.Error())
			} else {
				log.Printf("Subscribed to topic: %s\n", topic)
			}
		}
	})

	client := mqtt.NewClient(opts)

	log.Printf("Connecting to MQTT broker at %s...\n", broker)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("Failed to connect to MQTT broker: %v\n", token.Error())
		return
	}

	<-ctx.Done()

	if client.IsConnected() {
		client.Disconnect(250)
		log.Println("Disconnected from MQTT broker")
	}
}
