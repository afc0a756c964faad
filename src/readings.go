package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hearthward/floorctl/src/control"
)

// SensorMessage represents an MQTT message with topic and raw payload.
type SensorMessage struct {
	Topic string
	Value string
}

// SensorSnapshot is one immutable view of every subscribed topic,
// handed to the zone worker after each change.
type SensorSnapshot struct {
	At     time.Time
	Values map[string]control.Reading
	Raw    map[string]string
}

// Reading returns the optional numeric reading for a topic. Topics
// never seen, unparsable, or expired come back absent.
func (s SensorSnapshot) Reading(topic string) control.Reading {
	return s.Values[topic]
}

// Readings collects the optional readings for a topic list, preserving
// order so each sensor keeps a stable identity.
func (s SensorSnapshot) Readings(topics []string) []control.Reading {
	out := make([]control.Reading, len(topics))
	for i, topic := range topics {
		out[i] = s.Values[topic]
	}
	return out
}

// SwitchOn reports a relay state topic's value. known is false when the
// topic has never reported or has expired.
func (s SensorSnapshot) SwitchOn(topic string) (on, known bool) {
	raw, ok := s.Raw[topic]
	if !ok {
		return false, false
	}
	return strings.EqualFold(raw, "on"), true
}

// parseSensorPayload converts a raw payload into an optional reading.
// Home Assistant publishes "unavailable"/"unknown" when a sensor drops
// out; those and anything non-numeric are absent, never a sentinel.
func parseSensorPayload(value string) control.Reading {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "unavailable", "unknown", "none":
		return control.Reading{}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return control.Reading{}
	}
	return control.NewReading(f)
}

type topicEntry struct {
	reading control.Reading
	raw     string
	at      time.Time
}

// Debounce interval between snapshots; sensor bursts fold into one.
const snapshotDebounce = time.Second

// Interval for sweeping expired topics into absence.
const expiryInterval = 5 * time.Second

// readingsWorker folds sensor messages into a per-topic table of
// optional readings and sends a fresh snapshot downstream after each
// change, debounced. Topics silent for longer than timeout expire to
// absent so a dead sensor degrades instead of freezing the loop on its
// last value.
func readingsWorker(
	ctx context.Context,
	msgChan <-chan SensorMessage,
	snapshotChan chan<- SensorSnapshot,
	timeout time.Duration,
) {
	table := make(map[string]topicEntry)

	expiryTicker := time.NewTicker(expiryInterval)
	defer expiryTicker.Stop()

	var lastSendTime time.Time
	var debounceTimer *time.Timer
	var debounceTimerC <-chan time.Time
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	send := func() bool {
		snap := SensorSnapshot{
			At:     time.Now(),
			Values: make(map[string]control.Reading, len(table)),
			Raw:    make(map[string]string, len(table)),
		}
		for topic, e := range table {
			snap.Values[topic] = e.reading
			if e.raw != "" {
				snap.Raw[topic] = e.raw
			}
		}
		select {
		case snapshotChan <- snap:
			lastSendTime = time.Now()
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case msg := <-msgChan:
			table[msg.Topic] = topicEntry{
				reading: parseSensorPayload(msg.Value),
				raw:     msg.Value,
				at:      time.Now(),
			}

			// Debounce: send immediately if enough time has passed,
			// otherwise schedule
			if time.Since(lastSendTime) >= snapshotDebounce {
				if !send() {
					return
				}
			} else if debounceTimer == nil {
				debounceTimer = time.NewTimer(snapshotDebounce - time.Since(lastSendTime))
				debounceTimerC = debounceTimer.C
			}

		case <-debounceTimerC:
			if !send() {
				return
			}
			debounceTimer = nil
			debounceTimerC = nil

		case <-expiryTicker.C:
			cutoff := time.Now().Add(-timeout)
			expired := false
			for topic, e := range table {
				if e.at.Before(cutoff) && (e.reading.Valid || e.raw != "") {
					table[topic] = topicEntry{at: e.at}
					expired = true
				}
			}
			if expired {
				if !send() {
					return
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
