// Package delivery drives a message through its lifecycle on the
// client: optimistic append, attachment upload, relay echo, transport
// ack, read receipt, soft delete. State transitions are per message and
// independent; one message failing never blocks or reorders siblings,
// and one conversation failing never affects another.
package delivery

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-core/pkg/models"
	"chat-core/pkg/reconcile"
)

// Storage is the local conversation cache. pkg/cache provides the
// pebble-backed implementation.
type Storage interface {
	LoadConversation(key string) ([]models.Message, error)
	SaveConversation(key string, msgs []models.Message) error
}

// Remote is the server-backed history API. FetchHistory failures
// degrade to cache-only operation; UploadAttachment failures fail the
// message being sent and nothing else.
type Remote interface {
	FetchHistory(ctx context.Context, key string) ([]models.Message, error)
	UploadAttachment(ctx context.Context, name, contentType string, data []byte) (models.Attachment, error)
}

// Emitter sends an event over the live socket.
type Emitter interface {
	Emit(event string, data interface{}) error
}

// File is an attachment pending upload.
type File struct {
	Name string
	Type string
	Data []byte
}

// Engine is the per-client delivery state machine. Safe for concurrent
// use; each conversation key is guarded by its own mutex so concurrent
// updates apply against the latest cached value, never a stale
// snapshot.
type Engine struct {
	selfID string
	store  Storage
	remote Remote
	out    Emitter
	logf   func(format string, args ...interface{})

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(selfID string, store Storage, remote Remote, out Emitter) *Engine {
	return &Engine{
		selfID: selfID,
		store:  store,
		remote: remote,
		out:    out,
		logf:   log.Printf,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (e *Engine) convLock(key string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	return l
}

// mutate runs fn against the latest cached log for key and writes the
// result back, all under the conversation lock.
func (e *Engine) mutate(key string, fn func([]models.Message) []models.Message) error {
	l := e.convLock(key)
	l.Lock()
	defer l.Unlock()

	msgs, err := e.store.LoadConversation(key)
	if err != nil {
		return err
	}
	return e.store.SaveConversation(key, fn(msgs))
}

// SendDirect sends a 1:1 message: attachments are uploaded first, then
// the message is appended optimistically with status sending and
// emitted to the relay. The returned message carries the client-
// generated id the caller can track.
func (e *Engine) SendDirect(ctx context.Context, to, text string, files []File) (models.Message, error) {
	msg := models.Message{
		ID:        uuid.New().String(),
		From:      e.selfID,
		To:        to,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		Status:    models.StatusSending,
	}
	return e.send(ctx, msg, models.EventChatMessage, files)
}

// SendGroup sends a message to a group room. The relay broadcasts it
// back to the sender too; the echo dedups by id against the optimistic
// copy.
func (e *Engine) SendGroup(ctx context.Context, groupID, text string, files []File) (models.Message, error) {
	msg := models.Message{
		ID:        uuid.New().String(),
		From:      e.selfID,
		GroupID:   groupID,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		Status:    models.StatusSending,
	}
	return e.send(ctx, msg, models.EventGroupMessage, files)
}

func (e *Engine) send(ctx context.Context, msg models.Message, event string, files []File) (models.Message, error) {
	key := msg.Key()

	for _, f := range files {
		att, err := e.remote.UploadAttachment(ctx, f.Name, f.Type, f.Data)
		if err != nil {
			msg.Status = models.StatusFailed
			if aerr := e.upsert(key, msg); aerr != nil {
				e.logf("delivery: failed to cache failed message %s: %v", msg.ID, aerr)
			}
			return msg, fmt.Errorf("attachment upload failed: %w", err)
		}
		msg.Attachments = append(msg.Attachments, att)
	}

	// Optimistic append before any network confirmation.
	if err := e.upsert(key, msg); err != nil {
		return msg, err
	}

	if err := e.out.Emit(event, msg); err != nil {
		msg.Status = models.StatusFailed
		if aerr := e.upsert(key, msg); aerr != nil {
			e.logf("delivery: failed to record send failure for %s: %v", msg.ID, aerr)
		}
		return msg, fmt.Errorf("send failed: %w", err)
	}
	return msg, nil
}

// Retry re-emits a failed message. Messages in any other state are left
// alone.
func (e *Engine) Retry(ctx context.Context, key, messageID string) error {
	var retry *models.Message
	err := e.mutate(key, func(msgs []models.Message) []models.Message {
		for i := range msgs {
			if msgs[i].ID == messageID && msgs[i].Status == models.StatusFailed {
				msgs[i].Status = models.StatusSending
				m := msgs[i]
				retry = &m
			}
		}
		return msgs
	})
	if err != nil {
		return err
	}
	if retry == nil {
		return nil
	}
	event := models.EventChatMessage
	if retry.GroupID != "" {
		event = models.EventGroupMessage
	}
	if err := e.out.Emit(event, *retry); err != nil {
		_ = e.setStatus(key, messageID, models.StatusFailed)
		return fmt.Errorf("retry failed: %w", err)
	}
	return nil
}

// ApplyMessage folds a chat_message or new-group-message event into the
// cache. The relay echo of our own send confirms it (sending -> sent);
// a peer's message lands as delivered on our side. Duplicates collapse
// by id through the reconcile merge.
func (e *Engine) ApplyMessage(msg models.Message) error {
	if !msg.Valid() {
		return fmt.Errorf("invalid message event: id=%q from=%q", msg.ID, msg.From)
	}
	if msg.From == e.selfID {
		if msg.Status.Rank() < models.StatusSent.Rank() {
			msg.Status = models.StatusSent
		}
	} else if msg.Status.Rank() < models.StatusDelivered.Rank() {
		msg.Status = models.StatusDelivered
	}
	key := msg.Key()
	if msg.GroupID == "" {
		key = models.ConversationKey(e.selfID, msg.PeerOf(e.selfID))
	}
	return e.mutate(key, func(local []models.Message) []models.Message {
		return reconcile.Reconcile(local, []models.Message{msg})
	})
}

// ApplyDelivered handles the relay's transport ack for a direct send.
func (e *Engine) ApplyDelivered(ack models.DeliveredAck) error {
	key := models.ConversationKey(e.selfID, ack.To)
	return e.advance(key, ack.MessageID, models.StatusDelivered)
}

// ApplyReadReceipt handles a seen-private event: the peer has read our
// messages. An empty MessageID marks everything we sent them as read.
func (e *Engine) ApplyReadReceipt(r models.SeenPrivate) error {
	key := models.ConversationKey(e.selfID, r.From)
	return e.mutate(key, func(msgs []models.Message) []models.Message {
		for i := range msgs {
			if msgs[i].To != r.From {
				continue
			}
			if r.MessageID != "" && msgs[i].ID != r.MessageID {
				continue
			}
			if msgs[i].Status.Rank() < models.StatusRead.Rank() {
				msgs[i].Status = models.StatusRead
			}
		}
		return msgs
	})
}

// ApplyGroupSeen handles a message-seen event for a group message we
// sent.
func (e *Engine) ApplyGroupSeen(s models.SeenGroup) error {
	return e.advance(models.GroupKey(s.GroupID), s.MessageID, models.StatusRead)
}

// ApplyDeleted soft-deletes a message in place. The entry stays in the
// log; its content is gone for every reader.
func (e *Engine) ApplyDeleted(key, messageID string, deletedAt int64) error {
	if deletedAt == 0 {
		deletedAt = time.Now().UnixMilli()
	}
	return e.mutate(key, func(msgs []models.Message) []models.Message {
		for i := range msgs {
			if msgs[i].ID != messageID {
				continue
			}
			msgs[i].IsDeleted = true
			msgs[i].DeletedAt = deletedAt
			msgs[i].Text = ""
			msgs[i].Attachments = nil
		}
		return msgs
	})
}

// MarkConversationRead flips every incoming message in a direct
// conversation to read and raises the read receipt back to the peer.
// Called when the UI has the conversation open and visible. Returns how
// many messages changed state.
func (e *Engine) MarkConversationRead(peerID string) (int, error) {
	key := models.ConversationKey(e.selfID, peerID)
	changed := 0
	err := e.mutate(key, func(msgs []models.Message) []models.Message {
		for i := range msgs {
			if msgs[i].To != e.selfID || msgs[i].IsDeleted {
				continue
			}
			if msgs[i].Status != models.StatusRead {
				msgs[i].Status = models.StatusRead
				changed++
			}
		}
		return msgs
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		if err := e.out.Emit(models.EventSeenPrivate, models.SeenPrivate{From: e.selfID, To: peerID}); err != nil {
			// The receipt is best-effort; the next Refresh converges.
			e.logf("delivery: read receipt to %s failed: %v", peerID, err)
		}
	}
	return changed, nil
}

// MarkGroupMessageSeen records a group message as read locally and
// raises the group read receipt.
func (e *Engine) MarkGroupMessageSeen(groupID, messageID string) error {
	if err := e.advance(models.GroupKey(groupID), messageID, models.StatusRead); err != nil {
		return err
	}
	return e.out.Emit(models.EventSeen, models.SeenGroup{GroupID: groupID, UserID: e.selfID, MessageID: messageID})
}

// Refresh fetches the server history for a conversation, reconciles it
// with the cache and persists the merged log. A fetch failure degrades
// to cache-only: the cached log is returned and the error is only
// logged.
func (e *Engine) Refresh(ctx context.Context, key string) ([]models.Message, error) {
	l := e.convLock(key)
	l.Lock()
	defer l.Unlock()

	local, err := e.store.LoadConversation(key)
	if err != nil {
		return nil, err
	}

	remote, err := e.remote.FetchHistory(ctx, key)
	if err != nil {
		e.logf("delivery: history fetch for %s failed, serving cache: %v", key, err)
		return local, nil
	}

	merged := reconcile.Reconcile(local, remote)
	if err := e.store.SaveConversation(key, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Log returns the current cached log for a conversation.
func (e *Engine) Log(key string) ([]models.Message, error) {
	l := e.convLock(key)
	l.Lock()
	defer l.Unlock()
	return e.store.LoadConversation(key)
}

// SendTypingPrivate raises the ephemeral 1:1 typing signal.
func (e *Engine) SendTypingPrivate(to string) error {
	return e.out.Emit(models.EventTypingPrivate, models.TypingPrivate{From: e.selfID, To: to})
}

// SendTypingGroup raises the ephemeral group typing signal.
func (e *Engine) SendTypingGroup(groupID string) error {
	return e.out.Emit(models.EventTyping, models.TypingGroup{GroupID: groupID, UserID: e.selfID})
}

// Delete asks the relay to fan the deletion out to both participants
// and applies it locally right away.
func (e *Engine) Delete(peerID, messageID string) error {
	key := models.ConversationKey(e.selfID, peerID)
	if err := e.ApplyDeleted(key, messageID, 0); err != nil {
		return err
	}
	return e.out.Emit(models.EventDeleteMessage, models.DeleteRequest{
		MessageID: messageID,
		UserID1:   e.selfID,
		UserID2:   peerID,
	})
}

// upsert merges one message into its conversation by id.
func (e *Engine) upsert(key string, msg models.Message) error {
	return e.mutate(key, func(msgs []models.Message) []models.Message {
		for i := range msgs {
			if msgs[i].ID == msg.ID {
				msgs[i] = msg
				return msgs
			}
		}
		return append(msgs, msg)
	})
}

// setStatus forces a message's status, used for failure transitions.
func (e *Engine) setStatus(key, messageID string, to models.Status) error {
	return e.mutate(key, func(msgs []models.Message) []models.Message {
		for i := range msgs {
			if msgs[i].ID == messageID {
				msgs[i].Status = to
			}
		}
		return msgs
	})
}

// advance raises a message's status, never lowering it.
func (e *Engine) advance(key, messageID string, to models.Status) error {
	return e.mutate(key, func(msgs []models.Message) []models.Message {
		for i := range msgs {
			if msgs[i].ID == messageID && msgs[i].Status.Rank() < to.Rank() {
				msgs[i].Status = to
			}
		}
		return msgs
	})
}
