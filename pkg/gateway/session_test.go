package gateway

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shmkit/itsgate/pkg/directory/models"
)

func TestSessionTable(t *testing.T) {
	table := NewSessionTable(nil)

	sess := table.Add("192.0.2.1:5000")
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.ConnID)
	assert.False(t, sess.Authenticated())
	assert.Equal(t, 1, table.Len())

	got, ok := table.Get("192.0.2.1:5000")
	require.True(t, ok)
	assert.Same(t, sess, got)

	other := table.Add("192.0.2.2:5000")
	assert.NotEqual(t, sess.ConnID, other.ConnID)
	assert.Equal(t, 2, table.Len())

	table.Remove("192.0.2.1:5000")
	_, ok = table.Get("192.0.2.1:5000")
	assert.False(t, ok)
	assert.Equal(t, 1, table.Len())

	// Removing an unknown address is a no-op.
	table.Remove("192.0.2.9:5000")
	assert.Equal(t, 1, table.Len())
}

func TestSessionTableReaddReplaces(t *testing.T) {
	table := NewSessionTable(nil)

	first := table.Add("192.0.2.1:5000")
	first.Username = "stale"

	second := table.Add("192.0.2.1:5000")
	assert.NotSame(t, first, second)
	assert.False(t, second.Authenticated())
	assert.Equal(t, 1, table.Len())
}

func TestSessionTableConcurrent(t *testing.T) {
	table := NewSessionTable(nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			addr := fmt.Sprintf("192.0.2.%d:6000", n)
			table.Add(addr)
			table.Get(addr)
			table.Snapshot()
			table.Remove(addr)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, table.Len())
}

// The session logger snapshots the table while handlers are mid-login, so
// snapshot reads and login commits must not race. Run with -race.
func TestSessionSnapshotDuringLogin(t *testing.T) {
	table := NewSessionTable(nil)
	sess := table.Add("192.0.2.1:5000")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				table.Snapshot()
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			sess.CommitLogin("admin", "hash", models.GradeAdmin, nil, time.Now())
		}
		close(done)
	}()
	wg.Wait()

	snap := table.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "admin", snap[0].Username)
	assert.Equal(t, models.GradeAdmin, snap[0].Grade)
}

func TestSessionAuthorizedIDs(t *testing.T) {
	sess := &Session{AuthorizedIDs: []string{"P_000001", "S_000003"}}

	assert.True(t, sess.HasAuthorizedID("P_000001"))
	assert.True(t, sess.HasAuthorizedID("S_000003"))
	assert.False(t, sess.HasAuthorizedID("P_000002"))
	assert.False(t, (&Session{}).HasAuthorizedID("P_000001"))
}
