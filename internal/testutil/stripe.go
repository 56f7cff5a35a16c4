package testutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// StripeSignature builds a Stripe-Signature header for payload signed with secret now.
func StripeSignature(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// StripeEvent returns a minimal event body whose data.object is object.
func StripeEvent(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_%d","object":"event","type":%q,"data":{"object":%s}}`,
		time.Now().UnixNano(), eventType, object))
}
