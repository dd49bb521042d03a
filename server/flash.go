package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const sessionCookie = "semrouter_session"

// flash is the question and answer shown once after a form post.
type flash struct {
	Question string
	Answer   string
}

// flashStore keeps at most one pending flash per session until it is read or expires.
type flashStore struct {
	pending *expirable.LRU[string, flash]
}

func newFlashStore(size int, ttl time.Duration) *flashStore {
	return &flashStore{
		pending: expirable.NewLRU[string, flash](size, nil, ttl),
	}
}

// session returns the caller's session id, issuing a cookie when there is none.
func (s *flashStore) session(c *gin.Context) string {
	if id, err := c.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
	return id
}

func (s *flashStore) put(session string, f flash) {
	s.pending.Add(session, f)
}

// pop returns the pending flash and forgets it.
func (s *flashStore) pop(session string) (flash, bool) {
	f, ok := s.pending.Get(session)
	if ok {
		s.pending.Remove(session)
	}
	return f, ok
}
