package payments_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/wanderly/tour-bookings/internal/observability"
	"github.com/wanderly/tour-bookings/internal/payments"
)

func signedHeader(payload []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

// A correctly signed delivery must verify on the signature alone. The
// provider stamps events with whatever API version the account is pinned
// to, so a version the SDK does not expect is not grounds for rejection.
func TestVerifyEvent_AcceptsSignedPayloadRegardlessOfAPIVersion(t *testing.T) {
	client := payments.NewClient("sk_test_key", "whsec_test_secret", observability.NewLogger())

	for _, payload := range [][]byte{
		[]byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`),
		[]byte(`{"id":"evt_2","type":"checkout.session.completed","api_version":"2020-08-27","data":{"object":{"id":"cs_2"}}}`),
	} {
		event, err := client.VerifyEvent(payload, signedHeader(payload, "whsec_test_secret", time.Now()))
		if err != nil {
			t.Fatalf("expected signed payload to verify, got %v", err)
		}
		if event.Type != "checkout.session.completed" {
			t.Errorf("unexpected event type %q", event.Type)
		}
	}
}

func TestVerifyEvent_RejectsWrongSecret(t *testing.T) {
	client := payments.NewClient("sk_test_key", "whsec_test_secret", observability.NewLogger())

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	if _, err := client.VerifyEvent(payload, signedHeader(payload, "whsec_other_secret", time.Now())); err == nil {
		t.Fatal("expected verification to fail for a foreign signature")
	}
}

func TestVerifyEvent_RejectsStaleTimestamp(t *testing.T) {
	client := payments.NewClient("sk_test_key", "whsec_test_secret", observability.NewLogger())

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	if _, err := client.VerifyEvent(payload, signedHeader(payload, "whsec_test_secret", time.Now().Add(-time.Hour))); err == nil {
		t.Fatal("expected verification to fail outside the timestamp tolerance")
	}
}
