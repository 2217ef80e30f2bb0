package dto

// PubSubPushRequest is the request body for a Pub/Sub push notification.
type PubSubPushRequest struct {
	Message      PubSubMessage `json:"message"`
	Subscription string        `json:"subscription"`
}

// PubSubMessage is the actual message from Pub/Sub.
type PubSubMessage struct {
	Data       []byte            `json:"data"` // Base64-encoded, decoded by encoding/json
	MessageID  string            `json:"messageId"`
	Attributes map[string]string `json:"attributes"`
}

// BillingEventDTO is the decoded payload of a billing push message. Tier is
// set for plan.changed events, Feature for feature.granted and
// feature.revoked events.
type BillingEventDTO struct {
	Type      string `json:"type" validate:"required"`
	AccountID string `json:"account_id" validate:"required"`
	Tier      string `json:"tier,omitempty"`
	Feature   string `json:"feature,omitempty"`
}
