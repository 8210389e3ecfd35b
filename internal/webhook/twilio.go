package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/xml"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// twilioSignature computes the X-Twilio-Signature value: HMAC-SHA1 over
// the full URL followed by the POST params sorted by key, each appended
// as key+value, base64 encoded.
func twilioSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// twiML is the reply SMS envelope.
type twiML struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// handleTwilio terminates SMS replies of the form "APPROVE <id>" or
// "REJECT <id>".
func (s *Server) handleTwilio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	// The signature covers the public URL Twilio posted to, which a
	// proxied service cannot reconstruct from the request alone.
	fullURL := s.cfg.TwilioURL
	if fullURL == "" {
		scheme := "https"
		if r.TLS == nil {
			scheme = "http"
		}
		fullURL = scheme + "://" + r.Host + r.URL.RequestURI()
	}
	want := twilioSignature(s.cfg.TwilioAuthToken, fullURL, r.PostForm)
	got := r.Header.Get("X-Twilio-Signature")
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		slog.Warn("twilio signature rejected", "ip", callerIP(r))
		http.Error(w, "bad signature", http.StatusUnauthorized)
		return
	}

	reply := func(text string) {
		w.Header().Set("Content-Type", "text/xml")
		xml.NewEncoder(w).Encode(twiML{Message: text})
	}

	fields := strings.Fields(strings.TrimSpace(r.PostForm.Get("Body")))
	if len(fields) != 2 {
		reply("Reply APPROVE <request-id> or REJECT <request-id>")
		return
	}

	var approve bool
	switch strings.ToUpper(fields[0]) {
	case "APPROVE", "YES":
		approve = true
	case "REJECT", "NO":
		approve = false
	default:
		reply("Reply APPROVE <request-id> or REJECT <request-id>")
		return
	}

	row, out := s.apply(r.Context(), humanVerdict{
		requestID:  fields[1],
		approve:    approve,
		resolvedBy: "sms:" + r.PostForm.Get("From"),
	})
	reply(ackText(row, out, approve))
}
