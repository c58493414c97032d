package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailpilot/internal/model"
	"mailpilot/internal/pipeline"
	"mailpilot/internal/service/mailsync"
	"mailpilot/pkg/config"
)

type fakeUsers []model.User

func (f fakeUsers) ListWithTokens(context.Context) ([]model.User, error) { return f, nil }

type fakeIdentities struct{ broken int64 }

func (f fakeIdentities) Identity(_ context.Context, userID int64) (model.Identity, error) {
	if userID == f.broken {
		return model.Identity{}, errors.New("refresh revoked")
	}
	return model.Identity{UserID: userID}, nil
}

type fakeSyncer struct {
	synced []int64
	max    int
}

func (f *fakeSyncer) Sync(_ context.Context, id model.Identity, max int) (*mailsync.Report, error) {
	f.synced = append(f.synced, id.UserID)
	f.max = max
	if id.UserID == 3 {
		return nil, errors.New("gmail down")
	}
	return &mailsync.Report{}, nil
}

type fakeStats struct{}

func (fakeStats) Stats(context.Context) (model.EmailStats, error) {
	return model.EmailStats{Total: 4, Processed: 4, ByIntent: map[string]int{"meeting": 2}}, nil
}

type recordingDispatcher struct{ got []pipeline.Notification }

func (r *recordingDispatcher) Dispatch(_ context.Context, n []pipeline.Notification) error {
	r.got = append(r.got, n...)
	return nil
}

func TestSyncAll_ContinuesPastFailures(t *testing.T) {
	syncer := &fakeSyncer{}
	s := New(config.SchedulerConfig{}, Deps{
		Users:      fakeUsers{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}},
		Identities: fakeIdentities{broken: 2},
		Syncer:     syncer,
	}, 25, zap.NewNop())

	require.NoError(t, s.SyncAll(context.Background()))
	assert.Equal(t, []int64{1, 3, 4}, syncer.synced)
	assert.Equal(t, 25, syncer.max)
}

func TestSendDigest(t *testing.T) {
	d := &recordingDispatcher{}
	s := New(config.SchedulerConfig{}, Deps{Stats: fakeStats{}, Dispatcher: d}, 10, zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC) }

	require.NoError(t, s.SendDigest(context.Background()))
	require.Len(t, d.got, 1)
	assert.Equal(t, "digest-2026-10-16:daily_digest", d.got[0].ID)
	assert.Equal(t, model.NotificationDailyDigest, d.got[0].Kind)
	assert.Contains(t, d.got[0].Text, "Meeting: 2")
}

func TestStart_RejectsBadSpec(t *testing.T) {
	s := New(config.SchedulerConfig{SyncSpec: "not a spec", DigestSpec: "0 8 * * *"}, Deps{}, 10, zap.NewNop())
	assert.Error(t, s.Start(context.Background()))
}

func TestStartAndStop(t *testing.T) {
	s := New(config.SchedulerConfig{SyncSpec: "@every 1h", DigestSpec: "0 8 * * *"}, Deps{}, 10, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	s.Stop()
	s.Stop()
}
