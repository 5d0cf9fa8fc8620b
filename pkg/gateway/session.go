package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shmkit/itsgate/pkg/directory/models"
	"github.com/shmkit/itsgate/pkg/metrics"
)

// Session is the per-connection state. A slot is inserted when the
// connection is accepted (before the TLS handshake) and deleted when the
// connection tears down, whatever the reason.
//
// The login fields are written through CommitLogin by the connection's own
// handler goroutine and read directly by that goroutine afterwards. The
// session logger reads them from other goroutines through Snapshot, so
// writes and cross-goroutine reads both take mu.
type Session struct {
	// RemoteAddr is the connection identity and the table key.
	RemoteAddr string

	// ConnID is a per-connection UUID used for log correlation.
	ConnID string

	// mu guards the login fields below against Snapshot readers.
	mu sync.Mutex

	// Username is set only after a successful login.
	Username string

	// PasswordHash is the verified bcrypt hash, retained for the session
	// lifetime. It is never re-verified or sent anywhere.
	PasswordHash string

	// Grade is the authenticated user's grade. Empty until login.
	Grade models.Grade

	// AuthorizedIDs holds the granted project/structure ids for limited
	// grades. Empty for admins, meaning unrestricted.
	AuthorizedIDs []string

	// LoggedInAt records when the login succeeded.
	LoggedInAt time.Time
}

// CommitLogin installs the authenticated state in one critical section.
// The dispatcher calls it only after every login check has passed.
func (s *Session) CommitLogin(username, passwordHash string, grade models.Grade, authorizedIDs []string, at time.Time) {
	s.mu.Lock()
	s.Username = username
	s.PasswordHash = passwordHash
	s.Grade = grade
	s.AuthorizedIDs = authorizedIDs
	s.LoggedInAt = at
	s.mu.Unlock()
}

// Authenticated reports whether the session has completed a login.
func (s *Session) Authenticated() bool {
	return s.Username != ""
}

// IsAdmin reports whether the session bypasses scope checks.
func (s *Session) IsAdmin() bool {
	return s.Grade == models.GradeAdmin
}

// HasAuthorizedID reports whether id is in the session's grant list.
func (s *Session) HasAuthorizedID(id string) bool {
	for _, granted := range s.AuthorizedIDs {
		if granted == id {
			return true
		}
	}
	return false
}

// SessionTable is the process-wide session store, keyed by remote address.
// It is the only state shared between connection handlers, so every map
// operation takes the lock.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	metrics  metrics.GatewayMetrics
}

// NewSessionTable creates an empty session table. metrics may be nil.
func NewSessionTable(m metrics.GatewayMetrics) *SessionTable {
	return &SessionTable{
		sessions: make(map[string]*Session),
		metrics:  m,
	}
}

// Add inserts a fresh session for the given remote address and returns it.
// An existing slot for the same address is replaced; remote addresses are
// unique per live TCP connection so a leftover can only be stale.
func (t *SessionTable) Add(remoteAddr string) *Session {
	sess := &Session{
		RemoteAddr: remoteAddr,
		ConnID:     uuid.NewString(),
	}

	t.mu.Lock()
	t.sessions[remoteAddr] = sess
	size := len(t.sessions)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.SetActiveSessions(size)
	}
	return sess
}

// Get returns the session for the given remote address.
func (t *SessionTable) Get(remoteAddr string) (*Session, bool) {
	t.mu.RLock()
	sess, ok := t.sessions[remoteAddr]
	t.mu.RUnlock()
	return sess, ok
}

// Remove deletes the session for the given remote address.
func (t *SessionTable) Remove(remoteAddr string) {
	t.mu.Lock()
	delete(t.sessions, remoteAddr)
	size := len(t.sessions)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.SetActiveSessions(size)
	}
}

// Len returns the number of live sessions.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// SessionSummary is a point-in-time view of one session for logging.
type SessionSummary struct {
	RemoteAddr string
	Username   string
	Grade      models.Grade
}

// Snapshot returns a summary of every live session.
func (t *SessionTable) Snapshot() []SessionSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]SessionSummary, 0, len(t.sessions))
	for _, sess := range t.sessions {
		sess.mu.Lock()
		out = append(out, SessionSummary{
			RemoteAddr: sess.RemoteAddr,
			Username:   sess.Username,
			Grade:      sess.Grade,
		})
		sess.mu.Unlock()
	}
	return out
}
