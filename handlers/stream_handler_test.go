package handlers

import (
	"testing"

	"github.com/icehouse-dev/curling-server/models"
)

func TestReplayEventsMarkNewestFrameLatest(t *testing.T) {
	views := []*models.StateView{{EndNumber: 1}, {EndNumber: 1}, {EndNumber: 1}}

	events := replayEvents(views)
	if len(events) != len(views) {
		t.Fatalf("replay produced %d events, want %d", len(events), len(views))
	}
	for i, event := range events[:len(events)-1] {
		if event.Event != eventHistoricalState {
			t.Errorf("event %d = %q, want %q", i, event.Event, eventHistoricalState)
		}
	}
	if last := events[len(events)-1]; last.Event != eventLatestState {
		t.Errorf("newest event = %q, want %q", last.Event, eventLatestState)
	}
	for i, event := range events {
		if event.State != views[i] {
			t.Errorf("event %d does not carry state %d", i, i)
		}
	}
}

func TestReplayEventsSingleFrameIsLatest(t *testing.T) {
	events := replayEvents([]*models.StateView{{EndNumber: 0}})
	if len(events) != 1 || events[0].Event != eventLatestState {
		t.Fatalf("events = %+v, want one %q frame", events, eventLatestState)
	}
}
