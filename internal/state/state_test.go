package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickline-labs/pricesheet/internal/faults"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(nil)
	require.NoError(t, s.Open(":memory:"))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestManifestRoundTrip(t *testing.T) {
	s := newTestStore(t)

	got, err := s.LookupManifest("isla|101|2")
	require.NoError(t, err)
	assert.Nil(t, got)

	e := ManifestEntry{
		Key:       "isla|101|2",
		Community: "Isla",
		Homesite:  "101",
		Floorplan: "2",
		Status:    StatusPending,
	}
	require.NoError(t, s.RecordManifest(e))

	got, err = s.LookupManifest("isla|101|2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
}

func TestManifestUpsertInPlace(t *testing.T) {
	s := newTestStore(t)

	e := ManifestEntry{Key: "isla|101|2", Status: StatusPending}
	require.NoError(t, s.RecordManifest(e))

	first, err := s.LookupManifest("isla|101|2")
	require.NoError(t, err)

	e.Status = StatusSucceeded
	e.Checksum = "abc123"
	e.DocOutput = "final_price_sheets/Isla_101_2.json"
	require.NoError(t, s.RecordManifest(e))

	got, err := s.LookupManifest("isla|101|2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.Equal(t, "abc123", got.Checksum)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)

	entries, err := s.ListManifest()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAuditAppendOnly(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendAudit("isla|101|2", OutcomeFailed, "certification failed", "run-1"))
	require.NoError(t, s.AppendAudit("isla|101|2", OutcomeSucceeded, "", "run-2"))
	require.NoError(t, s.AppendAudit("isla|101|2", OutcomeSkipped, "already recorded", "run-3"))

	entries, err := s.ListAudit(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Newest first.
	assert.Equal(t, OutcomeSkipped, entries[0].Outcome)
	assert.Equal(t, OutcomeFailed, entries[2].Outcome)

	limited, err := s.ListAudit(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, OutcomeSkipped, limited[0].Outcome)
}

func TestLockAcquireReleaseCycle(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AcquireLock("run-a", time.Hour))

	err := s.AcquireLock("run-b", time.Hour)
	require.Error(t, err)
	assert.Equal(t, faults.ClassLockHeld, faults.ClassOf(err))

	// Same holder re-acquires without error.
	require.NoError(t, s.AcquireLock("run-a", time.Hour))

	// Wrong holder cannot release.
	err = s.ReleaseLock("run-b")
	require.Error(t, err)
	assert.Equal(t, faults.ClassLockHeld, faults.ClassOf(err))

	require.NoError(t, s.ReleaseLock("run-a"))
	require.NoError(t, s.AcquireLock("run-b", time.Hour))
}

func TestLockInsertRaceLoserGetsLockHeld(t *testing.T) {
	s := newTestStore(t)

	// Two processes can both read an empty run_lock before either
	// inserts. The second insert must classify as LockHeld, not surface
	// the constraint violation.
	require.NoError(t, s.insertLock("run-a", time.Now().UTC()))

	err := s.insertLock("run-b", time.Now().UTC())
	require.Error(t, err)
	assert.Equal(t, faults.ClassLockHeld, faults.ClassOf(err))

	lock, err := s.CurrentLock()
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "run-a", lock.Holder)
}

func TestLockStaleNeverAutoClears(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AcquireLock("run-dead", time.Hour))
	// Age the heartbeat past any staleness threshold.
	_, err := s.db.Exec(`UPDATE run_lock SET heartbeat_at = ? WHERE id = 1`,
		time.Now().UTC().Add(-2*time.Hour))
	require.NoError(t, err)

	err = s.AcquireLock("run-new", time.Hour)
	require.Error(t, err)
	assert.Equal(t, faults.ClassLockStale, faults.ClassOf(err))

	// A second attempt still fails: the stale lock was not cleared.
	err = s.AcquireLock("run-new", time.Hour)
	require.Error(t, err)
	assert.Equal(t, faults.ClassLockStale, faults.ClassOf(err))

	require.NoError(t, s.ResetLock())
	require.NoError(t, s.AcquireLock("run-new", time.Hour))
}

func TestLockHeartbeat(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AcquireLock("run-a", time.Hour))

	_, err := s.db.Exec(`UPDATE run_lock SET heartbeat_at = ? WHERE id = 1`,
		time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)

	require.NoError(t, s.HeartbeatLock("run-a"))
	after, err := s.CurrentLock()
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.True(t, after.HeartbeatAt.After(time.Now().UTC().Add(-30*time.Second)))

	err = s.HeartbeatLock("run-b")
	require.Error(t, err)
	assert.Equal(t, faults.ClassLockHeld, faults.ClassOf(err))
}

func TestCertificationCache(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetCertification("isla|2", "sum1")
	require.NoError(t, err)
	assert.Nil(t, got)

	cert := Certification{
		MappingKey: "isla|2",
		Template:   "Isla_Plan2_Template.json",
		Marker:     "[[PS|ISLA2]]",
		Checksum:   "sum1",
		Passed:     true,
		ReportJSON: `{"checks":[]}`,
	}
	require.NoError(t, s.PutCertification(cert))

	got, err = s.GetCertification("isla|2", "sum1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Passed)

	// A changed template checksum invalidates the cache.
	got, err = s.GetCertification("isla|2", "sum2")
	require.NoError(t, err)
	assert.Nil(t, got)

	cert.Checksum = "sum2"
	cert.Passed = false
	require.NoError(t, s.PutCertification(cert))
	got, err = s.GetCertification("isla|2", "sum2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Passed)

	certs, err := s.ListCertifications()
	require.NoError(t, err)
	assert.Len(t, certs, 1)
}

func TestMarkerConflicts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.PutCertification(Certification{
		MappingKey: "isla|2", Template: "a.json", Marker: "[[PS|ISLA2]]", Checksum: "s1", Passed: true,
	}))
	require.NoError(t, s.PutCertification(Certification{
		MappingKey: "vista|3", Template: "b.json", Marker: "[[PS|ISLA2]]", Checksum: "s2", Passed: true,
	}))
	require.NoError(t, s.PutCertification(Certification{
		MappingKey: "vista|4", Template: "c.json", Marker: "[[PS|VISTA4]]", Checksum: "s3", Passed: true,
	}))
	// Failed certifications do not participate in uniqueness.
	require.NoError(t, s.PutCertification(Certification{
		MappingKey: "oaks|1", Template: "d.json", Marker: "[[PS|ISLA2]]", Checksum: "s4", Passed: false,
	}))

	conflicts, err := s.MarkerConflicts("[[PS|ISLA2]]", "isla|2")
	require.NoError(t, err)
	assert.Equal(t, []string{"vista|3"}, conflicts)

	conflicts, err = s.MarkerConflicts("[[PS|VISTA4]]", "vista|4")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestFolders(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveFolder("new_releases", "/data/inbox", true))
	require.NoError(t, s.SaveFolder("templates", "/data/templates", false))
	require.NoError(t, s.SaveFolder("new_releases", "/data/inbox2", true))

	folders, err := s.ListFolders()
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, "new_releases", folders[0].Label)
	assert.Equal(t, "/data/inbox2", folders[0].Path)
	assert.True(t, folders[0].Verified)
	assert.Equal(t, "templates", folders[1].Label)
}

func TestOpenOnDisk(t *testing.T) {
	s := New(nil)
	path := t.TempDir() + "/state.db"
	require.NoError(t, s.Open(path))
	require.NoError(t, s.RecordManifest(ManifestEntry{Key: "k", Status: StatusPending}))
	require.NoError(t, s.Close())

	// Reopen and confirm the data survived.
	s2 := New(nil)
	require.NoError(t, s2.Open(path))
	defer s2.Close()
	got, err := s2.LookupManifest("k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusPending, got.Status)
}
