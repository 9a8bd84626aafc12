package bus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notifier propagates storage-key change signals to views held by *other*
// service instances. Like the browser's storage event, it never fires for
// the instance that performed the write; same-instance views are reached
// through the in-process Bus instead.
type Notifier interface {
	// Announce signals that key changed. Failures are swallowed; change
	// propagation is best-effort beyond the writer's own instance.
	Announce(ctx context.Context, key string)
	// Watch registers fn to run when another instance changes key.
	Watch(key string, fn func()) (cancel func())
}

// Nop is the notifier for single-instance deployments.
type Nop struct{}

func (Nop) Announce(context.Context, string) {}

func (Nop) Watch(string, func()) (cancel func()) { return func() {} }

type changeMessage struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

// RedisNotifier implements Notifier on a Redis pub/sub channel. Every
// notifier carries a unique origin id; messages published with its own id
// are dropped on receipt.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger

	mu      sync.Mutex
	next    int
	watches map[string]map[int]func()
}

// NewRedisNotifier creates a notifier publishing on the given channel.
func NewRedisNotifier(client *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
		watches: make(map[string]map[int]func()),
	}
}

// Run subscribes to the channel and dispatches incoming changes until ctx is
// cancelled. Call it in its own goroutine.
func (n *RedisNotifier) Run(ctx context.Context) error {
	sub := n.client.Subscribe(ctx, n.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			n.dispatch(msg.Payload)
		}
	}
}

func (n *RedisNotifier) dispatch(payload string) {
	var msg changeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		n.logger.Warn("Dropping malformed change notification", zap.Error(err))
		return
	}
	// The writer's own instance already notified its views synchronously.
	if msg.Origin == n.origin {
		return
	}

	n.mu.Lock()
	fns := make([]func(), 0, len(n.watches[msg.Key]))
	for _, fn := range n.watches[msg.Key] {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (n *RedisNotifier) Announce(ctx context.Context, key string) {
	raw, err := json.Marshal(changeMessage{Origin: n.origin, Key: key})
	if err != nil {
		return
	}
	if err := n.client.Publish(ctx, n.channel, string(raw)).Err(); err != nil {
		n.logger.Warn("Failed to announce key change",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func (n *RedisNotifier) Watch(key string, fn func()) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	if n.watches[key] == nil {
		n.watches[key] = make(map[int]func())
	}
	n.watches[key][id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.watches[key], id)
	}
}
