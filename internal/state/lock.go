package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brickline-labs/pricesheet/internal/faults"
)

// Lock is the single-writer run lock. At most one row ever exists.
type Lock struct {
	Holder      string
	AcquiredAt  time.Time
	HeartbeatAt time.Time
}

// AcquireLock claims the run lock for holder. A live lock held by
// someone else fails with LockHeld. A lock whose heartbeat is older
// than staleness fails with LockStale and is never cleared
// automatically; an operator must reset it.
func (s *Store) AcquireLock(holder string, staleness time.Duration) error {
	now := time.Now().UTC()

	var cur Lock
	err := s.db.QueryRow(`SELECT holder, acquired_at, heartbeat_at FROM run_lock WHERE id = 1`).
		Scan(&cur.Holder, &cur.AcquiredAt, &cur.HeartbeatAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.insertLock(holder, now)
	case err != nil:
		return fmt.Errorf("acquire lock: %w", err)
	}

	if cur.Holder == holder {
		// Re-entrant acquire refreshes the heartbeat.
		return s.HeartbeatLock(holder)
	}
	if now.Sub(cur.HeartbeatAt) > staleness {
		return faults.New(faults.ClassLockStale,
			"run lock held by %q is stale (last heartbeat %s); run `pricesheet lock reset` after confirming no run is live",
			cur.Holder, cur.HeartbeatAt.Format(time.RFC3339))
	}
	return faults.New(faults.ClassLockHeld, "run lock held by %q since %s",
		cur.Holder, cur.AcquiredAt.Format(time.RFC3339))
}

// insertLock claims an unheld lock. Two processes can race past the
// read above; the primary key arbitrates, and the loser sees LockHeld
// rather than a constraint error.
func (s *Store) insertLock(holder string, now time.Time) error {
	res, err := s.db.Exec(
		`INSERT INTO run_lock (id, holder, acquired_at, heartbeat_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		holder, now, now)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if n == 0 {
		return faults.New(faults.ClassLockHeld, "run lock claimed concurrently by another process")
	}
	return nil
}

// HeartbeatLock refreshes the holder's heartbeat. It is an error to
// heartbeat a lock you do not hold.
func (s *Store) HeartbeatLock(holder string) error {
	res, err := s.db.Exec(`UPDATE run_lock SET heartbeat_at = ? WHERE id = 1 AND holder = ?`,
		time.Now().UTC(), holder)
	if err != nil {
		return fmt.Errorf("heartbeat lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("heartbeat lock: %w", err)
	}
	if n == 0 {
		return faults.New(faults.ClassLockHeld, "run lock not held by %q", holder)
	}
	return nil
}

// ReleaseLock drops the lock if holder owns it. Releasing a lock held
// by someone else is refused.
func (s *Store) ReleaseLock(holder string) error {
	res, err := s.db.Exec(`DELETE FROM run_lock WHERE id = 1 AND holder = ?`, holder)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if n == 0 {
		var other string
		if err := s.db.QueryRow(`SELECT holder FROM run_lock WHERE id = 1`).Scan(&other); err == nil {
			return faults.New(faults.ClassLockHeld, "run lock held by %q, not %q", other, holder)
		}
	}
	return nil
}

// ResetLock force-clears the lock regardless of holder. Operator use
// only, after confirming the previous run is dead.
func (s *Store) ResetLock() error {
	if _, err := s.db.Exec(`DELETE FROM run_lock WHERE id = 1`); err != nil {
		return fmt.Errorf("reset lock: %w", err)
	}
	return nil
}

// CurrentLock reports the lock row, or nil when unheld.
func (s *Store) CurrentLock() (*Lock, error) {
	var l Lock
	err := s.db.QueryRow(`SELECT holder, acquired_at, heartbeat_at FROM run_lock WHERE id = 1`).
		Scan(&l.Holder, &l.AcquiredAt, &l.HeartbeatAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inspect lock: %w", err)
	}
	return &l, nil
}
