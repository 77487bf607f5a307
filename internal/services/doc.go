// Package services holds the model providers behind the workflow's LLM interface. Each provider
// converts a conversation, including its image attachments, to the wire format of its API.
package services
