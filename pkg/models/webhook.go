package models

import "strings"

// WebhookPayload is the form-encoded body Twilio posts for both inbound
// WhatsApp messages and delivery-status callbacks
type WebhookPayload struct {
	MessageSid    string `form:"MessageSid" json:"message_sid"`
	AccountSid    string `form:"AccountSid" json:"account_sid"`
	MessageStatus string `form:"MessageStatus" json:"message_status"`
	From          string `form:"From" json:"from"`
	To            string `form:"To" json:"to"`
	Body          string `form:"Body" json:"body"`
	ProfileName   string `form:"ProfileName" json:"profile_name"`
	WaID          string `form:"WaId" json:"wa_id"`
	ButtonPayload string `form:"ButtonPayload" json:"button_payload"`
	ButtonText    string `form:"ButtonText" json:"button_text"`
	NumMedia      int    `form:"NumMedia" json:"num_media"`
	ErrorCode     string `form:"ErrorCode" json:"error_code"`
}

// IsStatusCallback reports whether the payload is a delivery-status update
// for an outbound message rather than a new inbound message.
func (p WebhookPayload) IsStatusCallback() bool {
	status := strings.TrimSpace(p.MessageStatus)
	return status != "" && !strings.EqualFold(status, "received")
}
