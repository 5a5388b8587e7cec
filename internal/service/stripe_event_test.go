package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWebhookEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    WebhookEvent
	}{
		{
			name:    "checkout completed",
			payload: `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","client_reference_id":"u1","customer":"cus_1"}}}`,
			want:    CheckoutCompleted{ID: "evt_1", SessionID: "cs_1", ClientReferenceID: "u1", CustomerID: "cus_1"},
		},
		{
			name:    "checkout without customer",
			payload: `{"id":"evt_2","type":"checkout.session.completed","data":{"object":{"id":"cs_2","client_reference_id":"u1"}}}`,
			want:    CheckoutCompleted{ID: "evt_2", SessionID: "cs_2", ClientReferenceID: "u1"},
		},
		{
			name:    "subscription deleted with expanded customer",
			payload: `{"id":"evt_3","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1","customer":{"id":"cus_9","object":"customer"}}}}`,
			want:    SubscriptionDeleted{ID: "evt_3", SubscriptionID: "sub_1", CustomerID: "cus_9"},
		},
		{
			name:    "other type",
			payload: `{"id":"evt_4","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`,
			want:    UnhandledEvent{ID: "evt_4", Type: "invoice.paid"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeWebhookEvent([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.EventType(), got.EventType())
		})
	}
}

func TestDecodeWebhookEvent_Malformed(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":         `{`,
		"missing type":     `{"id":"evt_1","data":{"object":{}}}`,
		"checkout no data": `{"id":"evt_1","type":"checkout.session.completed"}`,
		"bad object":       `{"id":"evt_1","type":"customer.subscription.deleted","data":{"object":{"customer":42}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeWebhookEvent([]byte(payload))
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}
