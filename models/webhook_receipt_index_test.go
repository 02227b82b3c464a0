package models

import (
	"reflect"
	"strings"
	"testing"
)

// A provider may reuse one reference across event types (charge.succeeded,
// then charge.refunded on the same charge). The replay key must therefore
// cover all three of provider, reference, and event type, or the second
// event type would be dropped as a replay of the first.
func TestWebhookReceiptReplayKeyIncludesEventType(t *testing.T) {
	typ := reflect.TypeOf(WebhookReceipt{})
	for _, name := range []string{"Provider", "ProviderRef", "EventType"} {
		field, ok := typ.FieldByName(name)
		if !ok {
			t.Fatalf("WebhookReceipt has no field %s", name)
		}
		tag := field.Tag.Get("gorm")
		if !strings.Contains(tag, "index:uniq_receipt,unique") {
			t.Fatalf("WebhookReceipt.%s is not part of the uniq_receipt unique index (gorm tag %q)", name, tag)
		}
	}
}
