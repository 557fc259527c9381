package session

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedARN = errors.New("session: malformed session arn")

// StreamGroupFromARN returns the owning stream group of a session ARN. The
// resource path is streamgroup/<group>/streamsession/<id>, and the group is
// the segment after "streamgroup":
//
//	arn:aws:svc:us-west-2:111122223333:streamgroup/sg-abc/streamsession/sess-1 -> sg-abc
func StreamGroupFromARN(arn string) (string, error) {
	parts := strings.Split(arn, "/")
	if len(parts) < 4 {
		return "", fmt.Errorf("%w: %q", ErrMalformedARN, arn)
	}
	n := len(parts)
	marker, group, kind, id := parts[n-4], parts[n-3], parts[n-2], parts[n-1]
	if !strings.HasSuffix(marker, "streamgroup") || kind != "streamsession" || group == "" || id == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedARN, arn)
	}
	return group, nil
}

// SessionIDFromARN returns the last "/" segment of a session ARN.
func SessionIDFromARN(arn string) string {
	if i := strings.LastIndex(arn, "/"); i >= 0 {
		return arn[i+1:]
	}
	return arn
}

// RegionFromARN returns the region field of an ARN
// (arn:partition:service:region:account:resource), or "" if absent.
func RegionFromARN(arn string) string {
	fields := strings.SplitN(arn, ":", 6)
	if len(fields) < 6 || fields[0] != "arn" {
		return ""
	}
	return fields[3]
}

// BuildARN assembles a stream session ARN in the control plane's format.
func BuildARN(service, region, account, streamGroup, sessionID string) string {
	return fmt.Sprintf("arn:aws:%s:%s:%s:streamgroup/%s/streamsession/%s",
		service, region, account, streamGroup, sessionID)
}
