package models

import (
	"strings"
)

// Message represents a single entry of a conversation with the model. It carries the participant's
// role and an ordered list of contents, which for user messages may mix text and images.
type Message struct {
	Role     Role
	Contents []Content
}

// Content is a message content with its type.
type Content struct {
	Type ContentType

	// Text would be filled if Type is ContentTypeText.
	Text string

	// Image would be filled if Type is ContentTypeImage.
	Image *Attachment
}

// Role represents the role of a message participant.
type Role string

// ContentType represents the type of content in messages.
type ContentType string

const (
	// RoleSystem represents a system-level instruction. A message with this role would only contain text.
	RoleSystem Role = "system"
	// RoleUser represents a user instruction. A message with this role may contain text and images.
	RoleUser Role = "user"
	// RoleAssistant represents a model response.
	RoleAssistant Role = "assistant"

	// ContentTypeText represents text content.
	ContentTypeText ContentType = "text"
	// ContentTypeImage represents an image attachment.
	ContentTypeImage ContentType = "image"
)

// TextMessage creates a message with a single text content.
func TextMessage(role Role, text string) Message {
	return Message{
		Role: role,
		Contents: []Content{
			{
				Type: ContentTypeText,
				Text: text,
			},
		},
	}
}

// Text returns the text contents of the message joined together, skipping images.
func (m Message) Text() string {
	var sb strings.Builder
	for _, ct := range m.Contents {
		if ct.Type != ContentTypeText {
			continue
		}
		sb.WriteString(ct.Text)
	}
	return sb.String()
}

// Images returns the image attachments of the message in order.
func (m Message) Images() []Attachment {
	var imgs []Attachment
	for _, ct := range m.Contents {
		if ct.Type == ContentTypeImage && ct.Image != nil {
			imgs = append(imgs, *ct.Image)
		}
	}
	return imgs
}

// WithImage returns a copy of the message with the image appended to its contents. The receiver's
// contents are not modified.
func (m Message) WithImage(img Attachment) Message {
	contents := make([]Content, len(m.Contents), len(m.Contents)+1)
	copy(contents, m.Contents)
	m.Contents = append(contents, Content{
		Type:  ContentTypeImage,
		Image: &img,
	})
	return m
}
