package models

import (
	"fmt"
	"strings"
)

// Conversation is an ordered sequence of messages constituting the context of a single model turn.
//
// Conversations are values: Append and WithImage return new conversations and never write into the
// receiver's backing array, so a conversation may be shared between goroutines as long as nobody
// mutates its elements directly.
type Conversation []Message

// Append returns a new conversation holding the receiver's messages followed by msgs.
func (c Conversation) Append(msgs ...Message) Conversation {
	res := make(Conversation, 0, len(c)+len(msgs))
	res = append(res, c...)
	return append(res, msgs...)
}

// Concat returns a new conversation made of the receiver followed by every conversation in others.
func (c Conversation) Concat(others ...Conversation) Conversation {
	n := len(c)
	for _, o := range others {
		n += len(o)
	}
	res := make(Conversation, 0, n)
	res = append(res, c...)
	for _, o := range others {
		res = append(res, o...)
	}
	return res
}

// WithImage returns a copy of the conversation where the last message carries img as an additional
// content. An empty conversation is returned unchanged.
func (c Conversation) WithImage(img Attachment) Conversation {
	if len(c) == 0 {
		return c
	}
	res := c.Append()
	res[len(res)-1] = res[len(res)-1].WithImage(img)
	return res
}

// Last returns the last message of the conversation, and false if the conversation is empty.
func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}

// Render renders the conversation into a human readable transcript. Images are rendered as
// placeholders with their MIME type and size, which keeps debug logs small.
func (c Conversation) Render() string {
	var sb strings.Builder
	for i, msg := range c {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("[%s] ", msg.Role))
		for _, ct := range msg.Contents {
			switch ct.Type {
			case ContentTypeText:
				sb.WriteString(ct.Text)
			case ContentTypeImage:
				if ct.Image == nil {
					continue
				}
				sb.WriteString(fmt.Sprintf(" <image %s, %d bytes>", ct.Image.MIMEType, ct.Image.Size()))
			}
		}
	}
	return sb.String()
}
