package models

import (
	"encoding/base64"
	"fmt"
)

// Attachment is an image payload embedded in a message for multimodal input. Data holds the raw
// bytes and MIMEType the declared type used when the payload is sent to a model.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// NewAttachment creates an attachment from raw bytes.
func NewAttachment(mimeType string, data []byte) Attachment {
	return Attachment{
		MIMEType: mimeType,
		Data:     data,
	}
}

// DecodeAttachment creates an attachment from a base64 (standard encoding) payload.
func DecodeAttachment(mimeType, payload string) (Attachment, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Attachment{}, fmt.Errorf("error decoding attachment: %w", err)
	}
	return NewAttachment(mimeType, data), nil
}

// Base64 returns the payload encoded with the standard base64 encoding.
func (a Attachment) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// DataURL renders the attachment as a data URL, as expected by the image_url content parts of
// OpenAI-compatible APIs.
func (a Attachment) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", a.MIMEType, a.Base64())
}

// Size returns the payload size in bytes.
func (a Attachment) Size() int {
	return len(a.Data)
}
