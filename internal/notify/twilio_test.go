package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/cmdgate/internal/config"
)

func testTwilio(t *testing.T, handler http.HandlerFunc) *TwilioNotifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	n := NewTwilioNotifier(config.TwilioConfig{
		AccountSID: "AC00000000000000000000000000000000",
		AuthToken:  "token",
		FromNumber: "+15550001111",
		ToNumber:   "+15550002222",
	})
	n.apiBase = srv.URL
	return n
}

// TestTwilioSend_FormAndAuth verifies the Messages post carries basic
// auth, the configured numbers, and the reply instructions.
func TestTwilioSend_FormAndAuth(t *testing.T) {
	var gotUser, gotBody, gotPath string
	n := testTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		r.ParseForm()
		gotBody = r.PostForm.Get("Body")
		if r.PostForm.Get("From") != "+15550001111" || r.PostForm.Get("To") != "+15550002222" {
			t.Errorf("numbers: from=%q to=%q", r.PostForm.Get("From"), r.PostForm.Get("To"))
		}
		w.WriteHeader(http.StatusCreated)
	})

	err := n.SendNotification(context.Background(), Notification{
		RequestID: "req-1",
		Command:   "rm -rf /var/data",
		Reason:    "Recursive force delete",
		Severity:  "high",
	})
	if err != nil {
		t.Fatalf("SendNotification: %v", err)
	}

	if gotPath != "/Accounts/AC00000000000000000000000000000000/Messages.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUser != "AC00000000000000000000000000000000" {
		t.Errorf("basic auth user = %q", gotUser)
	}
	if !strings.Contains(gotBody, "APPROVE req-1") || !strings.Contains(gotBody, "REJECT req-1") {
		t.Errorf("body missing reply instructions: %q", gotBody)
	}
}

// TestTwilioSend_APIErrorSurfaces verifies non-2xx responses become
// errors so the coordinator can fall back to its default action.
func TestTwilioSend_APIErrorSurfaces(t *testing.T) {
	n := testTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid To number"}`, http.StatusBadRequest)
	})

	err := n.SendTest(context.Background())
	if err == nil {
		t.Fatal("SendTest accepted a 400")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error does not carry status: %v", err)
	}
}

// TestTwilioSend_MasksAuthToken verifies an API error that echoes the
// credential is scrubbed before it becomes an error string.
func TestTwilioSend_MasksAuthToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"auth failed for tw-auth-s3cret"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	n := NewTwilioNotifier(config.TwilioConfig{
		AccountSID: "AC00000000000000000000000000000000",
		AuthToken:  "tw-auth-s3cret",
		FromNumber: "+15550001111",
		ToNumber:   "+15550002222",
	})
	n.apiBase = srv.URL

	err := n.SendTest(context.Background())
	if err == nil {
		t.Fatal("SendTest accepted a 401")
	}
	if strings.Contains(err.Error(), "tw-auth-s3cret") || !strings.Contains(err.Error(), "REDACTED") {
		t.Errorf("credential not scrubbed: %v", err)
	}
}

// TestTwilioProbe verifies the account fetch path and identity string.
func TestTwilioProbe(t *testing.T) {
	n := testTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC00000000000000000000000000000000.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"friendly_name":"Dev Account","status":"active"}`))
	})

	got, err := n.ProbeConnection(context.Background())
	if err != nil {
		t.Fatalf("ProbeConnection: %v", err)
	}
	if !strings.Contains(got, "Dev Account") || !strings.Contains(got, "active") {
		t.Errorf("identity = %q", got)
	}
}
