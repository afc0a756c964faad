package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthward/floorctl/src/control"
)

func TestParseSensorPayload(t *testing.T) {
	cases := []struct {
		payload string
		want    control.Reading
	}{
		{"21.5", control.NewReading(21.5)},
		{" 21.5 ", control.NewReading(21.5)},
		{"-3.2", control.NewReading(-3.2)},
		{"unavailable", control.Reading{}},
		{"Unavailable", control.Reading{}},
		{"unknown", control.Reading{}},
		{"none", control.Reading{}},
		{"", control.Reading{}},
		{"on", control.Reading{}},
		{"NaN", control.Reading{}},
		{"+Inf", control.Reading{}},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, parseSensorPayload(tc.payload), "payload %q", tc.payload)
	}
}

func TestSensorSnapshot_Readings(t *testing.T) {
	snap := SensorSnapshot{
		Values: map[string]control.Reading{
			"a": control.NewReading(20.0),
			"c": control.NewReading(22.0),
		},
	}

	readings := snap.Readings([]string{"a", "b", "c"})
	require.Len(t, readings, 3)
	assert.True(t, readings[0].Valid)
	assert.False(t, readings[1].Valid, "unseen topic is absent")
	assert.Equal(t, 22.0, readings[2].Value)
}

func TestSensorSnapshot_SwitchOn(t *testing.T) {
	snap := SensorSnapshot{Raw: map[string]string{
		"sw1": "on",
		"sw2": "OFF",
		"sw3": "ON",
	}}

	on, known := snap.SwitchOn("sw1")
	assert.True(t, on)
	assert.True(t, known)

	on, known = snap.SwitchOn("sw2")
	assert.False(t, on)
	assert.True(t, known)

	on, known = snap.SwitchOn("sw3")
	assert.True(t, on)
	assert.True(t, known)

	_, known = snap.SwitchOn("never_seen")
	assert.False(t, known)
}

func TestReadingsWorker_SnapshotAfterMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgChan := make(chan SensorMessage, 10)
	snapChan := make(chan SensorSnapshot, 10)
	go readingsWorker(ctx, msgChan, snapChan, time.Minute)

	msgChan <- SensorMessage{Topic: "floor", Value: "24.5"}

	select {
	case snap := <-snapChan:
		r := snap.Reading("floor")
		assert.True(t, r.Valid)
		assert.Equal(t, 24.5, r.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
	}
}

func TestReadingsWorker_UnavailableBecomesAbsent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgChan := make(chan SensorMessage, 10)
	snapChan := make(chan SensorSnapshot, 10)
	go readingsWorker(ctx, msgChan, snapChan, time.Minute)

	msgChan <- SensorMessage{Topic: "floor", Value: "24.5"}
	select {
	case <-snapChan:
	case <-time.After(2 * time.Second):
		t.Fatal("no first snapshot")
	}

	msgChan <- SensorMessage{Topic: "floor", Value: "unavailable"}
	select {
	case snap := <-snapChan:
		assert.False(t, snap.Reading("floor").Valid, "unavailable forwarded as absent, not dropped")
	case <-time.After(3 * time.Second):
		t.Fatal("no second snapshot")
	}
}
