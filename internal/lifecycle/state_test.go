package lifecycle

import (
	"errors"
	"reflect"
	"testing"
)

func TestApply(t *testing.T) {
	base := State{Status: Stopped, Regions: []string{"us-west-2"}, LastSessionARN: "arn-old"}

	tests := []struct {
		name  string
		from  State
		event Event
		check func(t *testing.T, s State)
	}{
		{
			name:  "create sets starting",
			from:  base,
			event: Event{Kind: CreateRequested, ApplicationID: "a-1", StreamGroupID: "sg-1", Regions: []string{"eu-central-1", "eu-central-1"}},
			check: func(t *testing.T, s State) {
				if s.Status != Starting || !s.IsStarting || s.InputEnabled {
					t.Errorf("got %+v", s)
				}
				if !reflect.DeepEqual(s.Regions, []string{"eu-central-1"}) {
					t.Errorf("Regions = %v", s.Regions)
				}
				if s.ApplicationID != "a-1" || s.StreamGroupID != "sg-1" {
					t.Errorf("ids = %q %q", s.ApplicationID, s.StreamGroupID)
				}
			},
		},
		{
			name:  "create without regions keeps preference",
			from:  base,
			event: Event{Kind: CreateRequested},
			check: func(t *testing.T, s State) {
				if !reflect.DeepEqual(s.Regions, []string{"us-west-2"}) {
					t.Errorf("Regions = %v", s.Regions)
				}
			},
		},
		{
			name:  "activated records last session",
			from:  State{Status: Starting, IsStarting: true},
			event: Event{Kind: Activated, ARN: "arn-new", Region: "us-east-2"},
			check: func(t *testing.T, s State) {
				if s.Status != Running || s.IsStarting || !s.InputEnabled {
					t.Errorf("got %+v", s)
				}
				if s.LastSessionARN != "arn-new" || s.Region != "us-east-2" {
					t.Errorf("got %+v", s)
				}
			},
		},
		{
			name:  "reconnected leaves last session",
			from:  State{Status: Starting, IsStarting: true, LastSessionARN: "arn-old"},
			event: Event{Kind: Reconnected, ARN: "arn-other"},
			check: func(t *testing.T, s State) {
				if s.Status != Running || s.IsStarting {
					t.Errorf("got %+v", s)
				}
				if s.LastSessionARN != "arn-old" || s.SessionARN != "arn-other" {
					t.Errorf("got %+v", s)
				}
			},
		},
		{
			name:  "failed clears starting",
			from:  State{Status: Starting, IsStarting: true, InputEnabled: true},
			event: Event{Kind: Failed, Err: errors.New("boom")},
			check: func(t *testing.T, s State) {
				if s.Status != Error || s.IsStarting || s.InputEnabled || s.LastError != "boom" {
					t.Errorf("got %+v", s)
				}
			},
		},
		{
			name:  "closed stops",
			from:  State{Status: Running, InputEnabled: true, SessionARN: "arn", LastSessionARN: "arn"},
			event: Event{Kind: Closed},
			check: func(t *testing.T, s State) {
				if s.Status != Stopped || s.InputEnabled || s.SessionARN != "" {
					t.Errorf("got %+v", s)
				}
				if s.LastSessionARN != "arn" {
					t.Error("close must keep LastSessionARN")
				}
			},
		},
		{
			name:  "reconnect requested stores pending arn",
			from:  base,
			event: Event{Kind: ReconnectRequested, ARN: "arn-r"},
			check: func(t *testing.T, s State) {
				if s.Status != Starting || s.PendingSessionARN != "arn-r" {
					t.Errorf("got %+v", s)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Apply(tt.event, tt.from))
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := State{Regions: []string{"us-west-2", "us-east-2"}}
	out := Apply(Event{Kind: RegionsSelected, Regions: []string{"eu-west-1"}}, in)
	out.Regions = append(out.Regions, "x")

	if !reflect.DeepEqual(in.Regions, []string{"us-west-2", "us-east-2"}) {
		t.Errorf("input mutated: %v", in.Regions)
	}
}

func TestDedupeRegions(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, []string{}},
		{[]string{"a", "b", "a"}, []string{"a", "b"}},
		{[]string{"", "b", "", "c"}, []string{"b", "c"}},
	}
	for _, tt := range tests {
		if got := DedupeRegions(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("DedupeRegions(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEventKindString(t *testing.T) {
	if Activated.String() != "activated" {
		t.Errorf("Activated = %q", Activated.String())
	}
	if EventKind(99).String() != "unknown" {
		t.Error("unknown kind should stringify as unknown")
	}
}
