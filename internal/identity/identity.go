// Package identity derives a stable machine fingerprint and signs it with
// a shared HMAC secret so the webhook can bind a callback to the machine
// that created the approval request.
//
// Signed format: fingerprint ":" unix-seconds ":" first-16-hex of
// HMAC-SHA256(secret, fingerprint ":" unix-seconds).
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/user"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultFreshness is the maximum age of a signed identity at verification.
const DefaultFreshness = 600 * time.Second

var (
	ErrBadFormat    = errors.New("identity: malformed signed identifier")
	ErrStale        = errors.New("identity: timestamp outside freshness window")
	ErrBadSignature = errors.New("identity: signature mismatch")
)

var fingerprintRe = regexp.MustCompile(`^[0-9a-f]{32}$`)

var (
	fpOnce sync.Once
	fpHex  string
)

// Fingerprint returns the 32-hex-character machine fingerprint. The value
// is derived once per process and is stable across invocations on the same
// machine and user.
func Fingerprint() string {
	fpOnce.Do(func() {
		sum := sha256.Sum256([]byte(strings.Join(fingerprintSources(), "\n")))
		fpHex = hex.EncodeToString(sum[:])[:32]
	})
	return fpHex
}

func fingerprintSources() []string {
	hostname, _ := os.Hostname()

	username := os.Getenv("USER")
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = u.Username
	}

	home, _ := os.UserHomeDir()

	sources := []string{hostname, username, runtime.GOOS + "/" + runtime.GOARCH, home}

	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil {
			sources = append(sources, strings.TrimSpace(string(data)))
			break
		}
	}

	if runtime.GOOS == "darwin" {
		if uuid := darwinHardwareUUID(); uuid != "" {
			sources = append(sources, uuid)
		}
	}

	return sources
}

// darwinHardwareUUID shells out to ioreg for the platform hardware UUID.
// Best-effort: an empty result just narrows the fingerprint sources.
func darwinHardwareUUID() string {
	out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, "IOPlatformUUID") {
			if idx := strings.Index(line, "= \""); idx >= 0 {
				return strings.Trim(line[idx+2:], "\" ")
			}
		}
	}
	return ""
}

// Sign produces the signed identifier for fingerprint fp at time now.
func Sign(secret, fp string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	return fp + ":" + ts + ":" + tag(secret, fp, ts)
}

func tag(secret, fp, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fp + ":" + ts))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}

// Verify checks a signed identifier and returns the embedded fingerprint.
// With an empty secret it degrades to a 32-hex format check on the
// fingerprint part — a compatibility fallback for webhooks deployed
// without MACHINE_ID_SECRET, logged loudly.
func Verify(secret, signed string, now time.Time, freshness time.Duration) (string, error) {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}

	parts := strings.Split(signed, ":")

	if secret == "" {
		slog.Warn("machine identity secret not provisioned, falling back to format check")
		if !fingerprintRe.MatchString(parts[0]) {
			return "", ErrBadFormat
		}
		return parts[0], nil
	}

	if len(parts) != 3 {
		return "", ErrBadFormat
	}
	fp, ts, provided := parts[0], parts[1], parts[2]
	if !fingerprintRe.MatchString(fp) {
		return "", ErrBadFormat
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", ErrBadFormat
	}
	age := now.Unix() - unix
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > freshness {
		return "", fmt.Errorf("%w: %ds old", ErrStale, age)
	}

	expected := tag(secret, fp, ts)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		return "", ErrBadSignature
	}
	return fp, nil
}
