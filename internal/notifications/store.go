package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/careview/backend/internal/cache"
	"github.com/careview/backend/pkg/crypto"
	"github.com/careview/backend/pkg/logger"
	"github.com/careview/backend/pkg/metrics"
)

const (
	notificationKeyPrefix = "notification:"
	userListKeyPrefix     = "user_notifications:"
	unreadCountKeyPrefix  = "unread_count:"

	// DefaultNotificationTTL is how long a notification record stays readable.
	DefaultNotificationTTL = 7 * 24 * time.Hour

	// DefaultPageSize caps List when the caller passes no limit.
	DefaultPageSize = 20
)

// StoreConfig describes tunable behaviour for the notification store.
type StoreConfig struct {
	TTL   time.Duration
	Clock func() time.Time
}

// Store keeps per-user notification records in the cache together with a
// newest-first ID list and an unread counter. Creation is fanned out to
// registered sinks.
//
// The ID list uses a plain read-modify-write; concurrent creations for the
// same user can lose a list entry under contention. The unread counter uses
// the cache's atomic increment on the create path.
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger

	mu    sync.RWMutex
	sinks []Sink
}

// NewStore constructs a notification store over the supplied cache.
func NewStore(c *cache.Cache, cfg StoreConfig) (*Store, error) {
	if c == nil {
		return nil, errors.New("notification store: cache is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &Store{
		cache: c,
		ttl:   ttl,
		now:   clock,
		log:   logger.WithModule("notifications"),
	}, nil
}

// AddSink registers an observer for subsequently created notifications.
func (s *Store) AddSink(sink Sink) {
	if sink == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Create stores a new unread notification, prepends its ID to the user's
// list, bumps the unread counter, and notifies registered sinks.
func (s *Store) Create(ctx context.Context, userID, title, message string, typ Type, data map[string]interface{}) (*Notification, error) {
	if userID == "" {
		return nil, errors.New("notification store: user id is required")
	}

	id, err := crypto.NewNotificationID()
	if err != nil {
		return nil, fmt.Errorf("notification store: generate id: %w", err)
	}

	notification := &Notification{
		ID:        id,
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		Data:      data,
		IsRead:    false,
		CreatedAt: s.now(),
	}

	if !s.cache.Set(ctx, notificationKeyPrefix+id, notification, s.ttl) {
		return nil, errors.New("notification store: store notification")
	}

	ids := s.userList(ctx, userID)
	ids = append([]string{id}, ids...)
	s.cache.Set(ctx, userListKeyPrefix+userID, ids, s.ttl)

	s.cache.Incr(ctx, unreadCountKeyPrefix+userID, 1)

	metrics.NotificationsCreated.WithLabelValues(string(typ)).Inc()

	s.mu.RLock()
	sinks := make([]Sink, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.RUnlock()
	for _, sink := range sinks {
		sink.NotificationCreated(ctx, notification)
	}

	return notification, nil
}

// MarkAsRead flips the read flag and decrements the unread counter, floored
// at zero. Returns false when the notification is absent or owned by someone
// else.
func (s *Store) MarkAsRead(ctx context.Context, id, userID string) bool {
	notification := s.get(ctx, id)
	if notification == nil || notification.UserID != userID {
		return false
	}

	notification.IsRead = true
	s.cache.Set(ctx, notificationKeyPrefix+id, notification, s.ttl)

	count := s.UnreadCount(ctx, userID)
	if count > 0 {
		s.cache.Set(ctx, unreadCountKeyPrefix+userID, count-1, s.ttl)
	}

	return true
}

// MarkAllAsRead flips every unread notification in the user's list and resets
// the counter to zero. Returns the number flipped.
func (s *Store) MarkAllAsRead(ctx context.Context, userID string) int {
	marked := 0
	for _, id := range s.userList(ctx, userID) {
		notification := s.get(ctx, id)
		if notification == nil || notification.IsRead {
			continue
		}
		notification.IsRead = true
		s.cache.Set(ctx, notificationKeyPrefix+id, notification, s.ttl)
		marked++
	}

	s.cache.Set(ctx, unreadCountKeyPrefix+userID, 0, s.ttl)

	return marked
}

// Delete removes an owned notification from storage and from the user's list,
// decrementing the counter when it was still unread.
func (s *Store) Delete(ctx context.Context, id, userID string) bool {
	notification := s.get(ctx, id)
	if notification == nil || notification.UserID != userID {
		return false
	}

	s.cache.Delete(ctx, notificationKeyPrefix+id)

	ids := s.userList(ctx, userID)
	pruned := ids[:0]
	for _, nid := range ids {
		if nid != id {
			pruned = append(pruned, nid)
		}
	}
	s.cache.Set(ctx, userListKeyPrefix+userID, pruned, s.ttl)

	if !notification.IsRead {
		count := s.UnreadCount(ctx, userID)
		if count > 0 {
			s.cache.Set(ctx, unreadCountKeyPrefix+userID, count-1, s.ttl)
		}
	}

	return true
}

// List pages through the user's notifications, newest first. IDs whose record
// has expired are skipped without being removed from the list.
func (s *Store) List(ctx context.Context, userID string, limit, offset int) []*Notification {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	ids := s.userList(ctx, userID)
	if offset >= len(ids) {
		return nil
	}

	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}

	notifications := make([]*Notification, 0, end-offset)
	for _, id := range ids[offset:end] {
		if notification := s.get(ctx, id); notification != nil {
			notifications = append(notifications, notification)
		}
	}
	return notifications
}

// UnreadCount returns the user's unread counter, defaulting to zero.
func (s *Store) UnreadCount(ctx context.Context, userID string) int64 {
	var count int64
	if !s.cache.Get(ctx, unreadCountKeyPrefix+userID, &count) {
		return 0
	}
	if count < 0 {
		return 0
	}
	return count
}

// PruneDangling rewrites each user's ID list, dropping IDs whose record has
// expired. The read path skips dangling IDs without removing them; this is the
// coarse-grained heal that keeps the lists from growing unboundedly.
func (s *Store) PruneDangling(ctx context.Context) (int, error) {
	keys, err := s.cache.Store().Keys(ctx, userListKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("notification store: enumerate lists: %w", err)
	}

	pruned := 0
	for _, key := range keys {
		var ids []string
		if !s.cache.Get(ctx, key, &ids) {
			continue
		}

		alive := ids[:0]
		for _, id := range ids {
			if s.cache.Exists(ctx, notificationKeyPrefix+id) {
				alive = append(alive, id)
			}
		}

		if removed := len(ids) - len(alive); removed > 0 {
			s.cache.Set(ctx, key, alive, s.ttl)
			pruned += removed
		}
	}

	if pruned > 0 {
		s.log.Info("dangling notification ids pruned", zap.Int("count", pruned))
	}
	return pruned, nil
}

func (s *Store) get(ctx context.Context, id string) *Notification {
	var notification Notification
	if !s.cache.Get(ctx, notificationKeyPrefix+id, &notification) {
		return nil
	}
	return &notification
}

func (s *Store) userList(ctx context.Context, userID string) []string {
	var ids []string
	if !s.cache.Get(ctx, userListKeyPrefix+userID, &ids) {
		return nil
	}
	return ids
}
