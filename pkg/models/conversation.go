package models

import "time"

// SystemSender marks messages generated by the application itself.
const SystemSender = "system"

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// IsSystem reports whether the message was generated by the application.
func (m Message) IsSystem() bool {
	return m.Sender == SystemSender
}

// Conversation is the chat thread attached to a single receipt.
type Conversation struct {
	ID              string    `json:"id"`
	ReceiptID       string    `json:"receiptId"`
	Messages        []Message `json:"messages"`
	LastMessage     string    `json:"lastMessage,omitempty"`
	LastMessageTime time.Time `json:"lastMessageTime"`
}
