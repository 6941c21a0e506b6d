package obs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func TestAuthResponse(t *testing.T) {
	password := "supersecret"
	salt := "Z1+mk95ZPbAIzBRSOLNaQTn0prFDP/rE6yBPEeYnZvM="
	challenge := "ztTBnnuqrqaKDzRM3xcVdbYm78gkZuxUGdfzpABXOB8="

	// Recompute by hand: base64(sha256(base64(sha256(password+salt)) + challenge)).
	inner := sha256.Sum256([]byte(password + salt))
	secret := base64.StdEncoding.EncodeToString(inner[:])
	outer := sha256.Sum256([]byte(secret + challenge))
	want := base64.StdEncoding.EncodeToString(outer[:])

	if got := authResponse(password, salt, challenge); got != want {
		t.Errorf("authResponse = %q, want %q", got, want)
	}

	if authResponse("other", salt, challenge) == want {
		t.Error("different passwords must not produce the same response")
	}
	if authResponse(password, salt, "different-challenge") == want {
		t.Error("different challenges must not produce the same response")
	}
}

func TestEventWaitContextCancellation(t *testing.T) {
	c := NewClient("ws://127.0.0.1:4455", "", time.Millisecond, 0, nopLogger{})

	w := c.ExpectEvent("MediaInputPlaybackEnded", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Wait(ctx); err != context.Canceled {
		t.Fatalf("Wait = %v, want context.Canceled", err)
	}
	w.Cancel() // already deregistered, must be a no-op
}

func TestCallWithoutConnection(t *testing.T) {
	c := NewClient("ws://127.0.0.1:4455", "", time.Millisecond, 0, nopLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Call(ctx, "GetVersion", nil, nil); err == nil {
		t.Fatal("Call without a connection must fail")
	}
	if c.Connected() {
		t.Fatal("client never connected")
	}
}
