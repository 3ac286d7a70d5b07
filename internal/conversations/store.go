// Package conversations keeps the chat thread attached to each receipt.
package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crm/internal/logger"
	"crm/internal/validate"
	"crm/pkg/models"
)

// ErrSaveMessage is returned when a message could not be persisted. The
// underlying storage error is kept in the chain.
var ErrSaveMessage = errors.New("failed to save message")

type Persister interface {
	SaveConversations(ctx context.Context, conversations []models.Conversation) error
	LoadConversations(ctx context.Context) ([]models.Conversation, error)
}

type Store struct {
	p     Persister
	log   zerolog.Logger
	newID func() string
	now   func() time.Time

	mu            sync.RWMutex
	conversations []models.Conversation
}

type Option func(*Store)

// WithIDGenerator replaces the random id source.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithClock replaces the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(p Persister, opts ...Option) *Store {
	s := &Store{
		p:     p,
		log:   logger.WithComponent("conversations"),
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Load(ctx context.Context) error {
	const op = "Load"

	loaded, err := s.p.LoadConversations(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load chat history")
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	s.conversations = loaded
	s.mu.Unlock()
	return nil
}

func (s *Store) List() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Conversation(nil), s.conversations...)
}

// Conversation returns the thread of a receipt.
func (s *Store) Conversation(receiptID string) (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexByReceipt(s.conversations, receiptID); i >= 0 {
		c := s.conversations[i]
		c.Messages = append([]models.Message(nil), c.Messages...)
		return c, true
	}
	return models.Conversation{}, false
}

// LastMessage returns the latest message text of a receipt's thread, or ""
// when it has none.
func (s *Store) LastMessage(receiptID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexByReceipt(s.conversations, receiptID); i >= 0 {
		return s.conversations[i].LastMessage
	}
	return ""
}

// AddMessage appends a message to the thread of receiptID, creating the
// thread on first use.
func (s *Store) AddMessage(ctx context.Context, receiptID, content, sender string) (models.Message, error) {
	const op = "AddMessage"

	if strings.TrimSpace(receiptID) == "" {
		return models.Message{}, validate.New("receiptId", "is required")
	}
	if strings.TrimSpace(content) == "" {
		return models.Message{}, validate.New("content", "is required")
	}
	if sender == "" {
		sender = models.SystemSender
	}
	msg := models.Message{
		ID:        s.newID(),
		Content:   content,
		Sender:    sender,
		Timestamp: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]models.Conversation(nil), s.conversations...)
	if i := indexByReceipt(next, receiptID); i >= 0 {
		c := next[i]
		c.Messages = append(append([]models.Message(nil), c.Messages...), msg)
		c.LastMessage = content
		c.LastMessageTime = msg.Timestamp
		next[i] = c
	} else {
		next = append(next, models.Conversation{
			ID:              s.newID(),
			ReceiptID:       receiptID,
			Messages:        []models.Message{msg},
			LastMessage:     content,
			LastMessageTime: msg.Timestamp,
		})
	}

	if err := s.p.SaveConversations(ctx, next); err != nil {
		s.log.Error().Err(err).Str("receipt_id", receiptID).Msg("Failed to save conversation")
		return models.Message{}, fmt.Errorf("%s: %w: %w", op, ErrSaveMessage, err)
	}
	s.conversations = next
	s.log.Info().Str("receipt_id", receiptID).Str("sender", sender).Msg("Added message")
	return msg, nil
}

func indexByReceipt(conversations []models.Conversation, receiptID string) int {
	for i, c := range conversations {
		if c.ReceiptID == receiptID {
			return i
		}
	}
	return -1
}
