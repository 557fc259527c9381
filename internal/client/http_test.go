package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

const testARN = "arn:aws:svc:us-west-2:111122223333:streamgroup/sg-abc/streamsession/sess-1"

func TestStartSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var req StartSessionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.AppIdentifier != "a-1" || req.SGIdentifier != "sg-abc" || len(req.Regions) != 2 {
			t.Errorf("body = %+v", req)
		}
		json.NewEncoder(w).Encode(SessionResponse{ARN: testARN, Status: "ACTIVATING", Region: "us-west-2"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "tok")
	resp, err := c.StartSession(context.Background(), StartSessionRequest{
		AppIdentifier: "a-1",
		SGIdentifier:  "sg-abc",
		SignalRequest: "offer",
		Regions:       []string{"us-west-2", "us-east-2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.ARN != testARN || resp.Status != "ACTIVATING" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGetSessionEscapesSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/session/sg-abc/" + url.PathEscape(testARN)
		if r.URL.EscapedPath() != want {
			t.Errorf("path = %q, want %q", r.URL.EscapedPath(), want)
		}
		json.NewEncoder(w).Encode(SessionResponse{ARN: testARN, Status: "ACTIVE", SignalResponse: "answer"})
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(srv.URL, "").GetSession(context.Background(), "sg-abc", testARN)
	if err != nil {
		t.Fatal(err)
	}
	if resp.SignalResponse != "answer" {
		t.Errorf("SignalResponse = %q", resp.SignalResponse)
	}
}

func TestReconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reconnect" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req reconnectRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.SessionIdentifier != testARN || req.SignalRequest != "offer-2" {
			t.Errorf("body = %+v", req)
		}
		json.NewEncoder(w).Encode(reconnectResponse{SignalResponse: "answer-2"})
	}))
	defer srv.Close()

	answer, err := NewHTTPClient(srv.URL, "").Reconnect(context.Background(), testARN, "offer-2")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "answer-2" {
		t.Errorf("answer = %q", answer)
	}
}

func TestRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"throttled"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "").StartSession(context.Background(), StartSessionRequest{})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("err = %v, want *RequestError", err)
	}
	if reqErr.StatusCode != http.StatusInternalServerError || reqErr.Message != "throttled" {
		t.Errorf("RequestError = %+v", reqErr)
	}
	if reqErr.Error() != "throttled" {
		t.Errorf("Error() = %q", reqErr.Error())
	}
}
