package session

import (
	"errors"
	"testing"
)

func TestStreamGroupFromARN(t *testing.T) {
	tests := []struct {
		name    string
		arn     string
		want    string
		wantErr bool
	}{
		{
			name: "standard session arn",
			arn:  "arn:aws:svc:us-west-2:111122223333:streamgroup/sg-abc/streamsession/sess-1",
			want: "sg-abc",
		},
		{
			name: "other service and region",
			arn:  "arn:aws:gameliftstreams:eu-central-1:444455556666:streamgroup/sg-9ZY8X7Wv6/streamsession/ABC123",
			want: "sg-9ZY8X7Wv6",
		},
		{
			name: "extra leading segments",
			arn:  "prefix/extra/streamgroup/sg-x/streamsession/s",
			want: "sg-x",
		},
		{name: "no slashes", arn: "sess-1", wantErr: true},
		{name: "too few segments", arn: "streamgroup/sess-1", wantErr: true},
		{name: "empty group", arn: "streamgroup//streamsession/s", wantErr: true},
		{name: "empty session id", arn: "arn:aws:svc:r:a:streamgroup/sg-abc/streamsession/", wantErr: true},
		{name: "not a session path", arn: "arn:aws:svc:r:a:streamgroup/sg-abc/application/a-1", wantErr: true},
		{name: "missing group marker", arn: "arn:aws:svc:r:a:fleet/sg-abc/streamsession/s", wantErr: true},
		{name: "empty", arn: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StreamGroupFromARN(tt.arn)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedARN) {
					t.Fatalf("StreamGroupFromARN(%q) err = %v, want ErrMalformedARN", tt.arn, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("StreamGroupFromARN(%q) unexpected error: %v", tt.arn, err)
			}
			if got != tt.want {
				t.Errorf("StreamGroupFromARN(%q) = %q, want %q", tt.arn, got, tt.want)
			}
		})
	}
}

func TestBuildARNRoundTrip(t *testing.T) {
	arn := BuildARN("gameliftstreams", "us-east-2", "111122223333", "sg-abc", "sess-42")

	group, err := StreamGroupFromARN(arn)
	if err != nil {
		t.Fatal(err)
	}
	if group != "sg-abc" {
		t.Errorf("group = %q, want sg-abc", group)
	}
	if got := SessionIDFromARN(arn); got != "sess-42" {
		t.Errorf("SessionIDFromARN = %q, want sess-42", got)
	}
	if got := RegionFromARN(arn); got != "us-east-2" {
		t.Errorf("RegionFromARN = %q, want us-east-2", got)
	}
}

func TestRegionFromARNNotAnARN(t *testing.T) {
	if got := RegionFromARN("streamgroup/sg/streamsession/s"); got != "" {
		t.Errorf("RegionFromARN = %q, want empty", got)
	}
}

func TestStatusPhase(t *testing.T) {
	tests := []struct {
		status Status
		want   Phase
	}{
		{Active, PhaseActive},
		{Activating, PhasePending},
		{Connected, PhasePending},
		{PendingClientReconnection, PhasePending},
		{Reconnecting, PhasePending},
		{Terminating, PhaseFailed},
		{Terminated, PhaseFailed},
		{Error, PhaseFailed},
		{Status("SOMETHING_NEW"), PhasePending},
	}

	for _, tt := range tests {
		if got := tt.status.Phase(); got != tt.want {
			t.Errorf("%s.Phase() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if got := ParseStatus(" active "); got != Active {
		t.Errorf("ParseStatus = %q, want ACTIVE", got)
	}
}
