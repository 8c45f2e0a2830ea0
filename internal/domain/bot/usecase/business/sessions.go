package business

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
)

const maxSessions = 1024

// session is a probed video waiting for its owner to press a format button
type session struct {
	ID         string
	OwnerID    int64
	ChatID     int64
	MessageID  int
	URL        string
	UseCookies bool
	Info       *entities.VideoInfo
}

// sessionStore keeps format-choice sessions until they expire
type sessionStore struct {
	lru *expirable.LRU[string, *session]
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{lru: expirable.NewLRU[string, *session](maxSessions, nil, ttl)}
}

// add stores s under a fresh short id and returns it. Ids fit in callback data.
func (s *sessionStore) add(sess *session) string {
	sess.ID = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	s.lru.Add(sess.ID, sess)
	return sess.ID
}

func (s *sessionStore) get(id string) (*session, bool) {
	return s.lru.Get(id)
}

func (s *sessionStore) remove(id string) {
	s.lru.Remove(id)
}

// claim removes the session and reports whether this caller got it
func (s *sessionStore) claim(id string) bool {
	return s.lru.Remove(id)
}

func (s *sessionStore) restore(sess *session) {
	s.lru.Add(sess.ID, sess)
}

// pendingSet tracks sudo users who ran /setcookie and owe a cookie file
type pendingSet struct {
	lru *expirable.LRU[int64, struct{}]
}

func newPendingSet(ttl time.Duration) *pendingSet {
	return &pendingSet{lru: expirable.NewLRU[int64, struct{}](maxSessions, nil, ttl)}
}

func (p *pendingSet) add(userID int64) {
	p.lru.Add(userID, struct{}{})
}

func (p *pendingSet) contains(userID int64) bool {
	return p.lru.Contains(userID)
}

func (p *pendingSet) remove(userID int64) bool {
	return p.lru.Remove(userID)
}
