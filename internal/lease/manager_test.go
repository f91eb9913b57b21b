package lease

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelkit/easel/pkg/backend"
)

// fakeAPI serves claims from a scripted pool of unclaimed instances and
// records every claim request it sees.
type fakeAPI struct {
	unclaimed []string
	options   backend.GuildOptions
	optionsOK bool

	claims       []backend.ClaimRequest
	conflictNext bool
}

func (f *fakeAPI) GetUnclaimedInstance(context.Context) (string, error) {
	if len(f.unclaimed) == 0 {
		return "", fmt.Errorf("list unclaimed: %w", backend.ErrNotFound)
	}
	id := f.unclaimed[0]
	f.unclaimed = f.unclaimed[1:]
	return id, nil
}

func (f *fakeAPI) ClaimInstance(_ context.Context, req backend.ClaimRequest) (backend.InstanceDetails, error) {
	f.claims = append(f.claims, req)
	if f.conflictNext {
		f.conflictNext = false
		return backend.InstanceDetails{}, fmt.Errorf("claim: %w", backend.ErrLeaseConflict)
	}
	return backend.InstanceDetails{ID: req.InstanceID, BotToken: "token-" + req.InstanceID}, nil
}

func (f *fakeAPI) GetAssignedGuildOptions(context.Context, string) (backend.GuildOptions, error) {
	if !f.optionsOK {
		return backend.GuildOptions{}, fmt.Errorf("assignment: %w", backend.ErrNotFound)
	}
	return f.options, nil
}

type fakeHost struct {
	token   string
	opts    backend.GuildOptions
	started bool
	stopped bool
}

func (h *fakeHost) Start() error { h.started = true; return nil }
func (h *fakeHost) Stop() error  { h.stopped = true; return nil }

func (h *fakeHost) BotUserID() string { return "bot-user" }

func (h *fakeHost) SetNickname(context.Context, string, string) error { return nil }
func (h *fakeHost) SetStatus(string) error                            { return nil }

func (h *fakeHost) MessagesBefore(context.Context, string, int, string) ([]*discordgo.Message, error) {
	return nil, nil
}

func (h *fakeHost) SendMessage(context.Context, string, string) (*discordgo.Message, error) {
	return nil, nil
}

func (h *fakeHost) EditMessage(context.Context, string, string, string) error { return nil }

type fakeFactory struct {
	hosts []*fakeHost
}

func (f *fakeFactory) Create(botToken string, opts backend.GuildOptions) (RuntimeHost, error) {
	h := &fakeHost{token: botToken, opts: opts}
	f.hosts = append(f.hosts, h)
	return h, nil
}

func TestReclaimAcquiresAndRenews(t *testing.T) {
	api := &fakeAPI{unclaimed: []string{"inst-1"}}
	mgr := NewManager(api, &fakeFactory{}, "worker-1", "")

	first, err := mgr.Reclaim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "inst-1", first.InstanceID)
	assert.NotEmpty(t, first.ClaimToken)
	assert.Empty(t, api.claims[0].PreviousToken, "initial claim carries no previous token")

	second, err := mgr.Reclaim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "inst-1", second.InstanceID)
	assert.NotEqual(t, first.ClaimToken, second.ClaimToken, "every renewal rotates the token")
	assert.Equal(t, first.ClaimToken, api.claims[1].PreviousToken)
}

func TestReclaimPinnedInstanceSkipsDiscovery(t *testing.T) {
	api := &fakeAPI{}
	mgr := NewManager(api, &fakeFactory{}, "worker-1", "inst-pinned")

	lease, err := mgr.Reclaim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "inst-pinned", lease.InstanceID)
}

func TestReclaimConflictDropsLeaseThenReacquires(t *testing.T) {
	api := &fakeAPI{unclaimed: []string{"inst-1", "inst-2"}}
	mgr := NewManager(api, &fakeFactory{}, "worker-1", "")

	_, err := mgr.Reclaim(context.Background())
	require.NoError(t, err)

	api.conflictNext = true
	_, err = mgr.Reclaim(context.Background())
	require.Error(t, err)
	assert.True(t, backend.IsLeaseConflict(err))

	_, held := mgr.Current()
	assert.False(t, held, "conflict must drop the held lease")

	// The next reclaim re-enters acquisition and claims a fresh instance.
	lease, err := mgr.Reclaim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "inst-2", lease.InstanceID)
}

func TestEnsureAssignmentLifecycle(t *testing.T) {
	api := &fakeAPI{unclaimed: []string{"inst-1"}}
	factory := &fakeFactory{}
	mgr := NewManager(api, factory, "worker-1", "")

	_, err := mgr.EnsureAssignment(context.Background())
	assert.ErrorIs(t, err, ErrNoLease)

	_, err = mgr.Reclaim(context.Background())
	require.NoError(t, err)

	_, err = mgr.EnsureAssignment(context.Background())
	assert.ErrorIs(t, err, ErrUnassigned, "an idle instance is not a failure")

	api.optionsOK = true
	api.options = backend.GuildOptions{GuildID: "guild-1", Name: "Sketchers", ChannelID: "chan-1"}

	a, err := mgr.EnsureAssignment(context.Background())
	require.NoError(t, err)
	require.Len(t, factory.hosts, 1)
	assert.True(t, factory.hosts[0].started)
	assert.Equal(t, "token-inst-1", factory.hosts[0].token)
	assert.Equal(t, "guild-1", a.Options.GuildID)

	// Unchanged options reuse the running host.
	again, err := mgr.EnsureAssignment(context.Background())
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Len(t, factory.hosts, 1)
}

func TestEnsureAssignmentRebuildsOnDrift(t *testing.T) {
	api := &fakeAPI{unclaimed: []string{"inst-1"}, optionsOK: true}
	api.options = backend.GuildOptions{GuildID: "guild-1", ChannelID: "chan-1"}
	factory := &fakeFactory{}
	mgr := NewManager(api, factory, "worker-1", "")

	_, err := mgr.Reclaim(context.Background())
	require.NoError(t, err)
	_, err = mgr.EnsureAssignment(context.Background())
	require.NoError(t, err)

	// The operator repoints the board channel.
	api.options.ChannelID = "chan-2"

	a, err := mgr.EnsureAssignment(context.Background())
	require.NoError(t, err)

	require.Len(t, factory.hosts, 2)
	assert.True(t, factory.hosts[0].stopped, "superseded host must be stopped before the new one serves")
	assert.True(t, factory.hosts[1].started)
	assert.Equal(t, "chan-2", a.Options.ChannelID)
}

func TestShutdownStopsHost(t *testing.T) {
	api := &fakeAPI{unclaimed: []string{"inst-1"}, optionsOK: true}
	api.options = backend.GuildOptions{GuildID: "guild-1"}
	factory := &fakeFactory{}
	mgr := NewManager(api, factory, "worker-1", "")

	_, err := mgr.Reclaim(context.Background())
	require.NoError(t, err)
	_, err = mgr.EnsureAssignment(context.Background())
	require.NoError(t, err)

	mgr.Shutdown()
	require.Len(t, factory.hosts, 1)
	assert.True(t, factory.hosts[0].stopped)

	_, live := mgr.Assignment()
	assert.False(t, live)
}
