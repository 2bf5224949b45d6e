package repositories

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"chat-relay/domain"
)

const messagePrefix = "msg:"

type IMessageLog interface {
	Append(message domain.Message) error
	DirectedHistory(a, b string) ([]domain.Message, error)
	BroadcastHistory() ([]domain.Message, error)
	Len() (int, error)
}

// MessageLog is the append-only record of sent messages, directed and
// broadcast alike. Keys are "msg:{seq}" with a zero-padded process-monotonic
// sequence, so lexicographic key order is arrival order and history scans
// need no re-sorting. Entries are never edited or removed.
type MessageLog struct {
	db  *badger.DB
	log *slog.Logger
	seq atomic.Uint64
}

func NewMessageLog(db *badger.DB, log *slog.Logger) *MessageLog {
	return &MessageLog{db: db, log: log}
}

type messageRecord struct {
	ID     string `cbor:"id"`
	Kind   string `cbor:"kind"`
	From   string `cbor:"from"`
	To     string `cbor:"to,omitempty"`
	Body   string `cbor:"body"`
	SentAt int64  `cbor:"sent_at"`
}

// Append assigns the next sequence key and stores the message.
// 19-digit zero padding keeps lexicographic and numeric order aligned.
func (m *MessageLog) Append(message domain.Message) error {
	key := fmt.Sprintf("%s%019d", messagePrefix, m.seq.Add(1))
	data, err := cbor.Marshal(fromMessage(message))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// DirectedHistory returns every directed message between a and b, in either
// direction, in arrival order. There is no time-window filtering.
func (m *MessageLog) DirectedHistory(a, b string) ([]domain.Message, error) {
	return m.scan(func(msg domain.Message) bool {
		return msg.MatchesPair(a, b)
	})
}

// BroadcastHistory returns the full broadcast log in arrival order.
func (m *MessageLog) BroadcastHistory() ([]domain.Message, error) {
	return m.scan(func(msg domain.Message) bool {
		return msg.Kind == domain.KindBroadcast
	})
}

func (m *MessageLog) Len() (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(messagePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// scan walks the whole log in key order and keeps matching entries. The log
// is small by design (memory-resident, one process lifetime); a keyed index
// per conversation would only complicate the unordered-pair match.
func (m *MessageLog) scan(keep func(domain.Message) bool) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(messagePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec messageRecord
			err := it.Item().Value(func(val []byte) error {
				return cbor.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			message, err := toMessage(rec)
			if err != nil {
				return err
			}
			if keep(message) {
				messages = append(messages, message)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func fromMessage(message domain.Message) messageRecord {
	return messageRecord{
		ID:     message.ID.String(),
		Kind:   string(message.Kind),
		From:   message.From,
		To:     message.To,
		Body:   message.Body,
		SentAt: message.SentAt,
	}
}

func toMessage(rec messageRecord) (domain.Message, error) {
	parsedID, err := uuid.Parse(rec.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:     parsedID,
		Kind:   domain.MessageKind(rec.Kind),
		From:   rec.From,
		To:     rec.To,
		Body:   rec.Body,
		SentAt: rec.SentAt,
	}, nil
}
