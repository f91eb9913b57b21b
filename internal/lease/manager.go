// Package lease owns the worker's only cross-tick mutable state: the
// current instance lease and the running guild assignment. Both values are
// replaced wholesale under their own mutex, never field-mutated, so a
// concurrent reader sees either the fully-old or fully-new value.
package lease

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/easelkit/easel/internal/board"
	"github.com/easelkit/easel/pkg/backend"
)

// ErrNoLease indicates a call that requires a held lease ran before any
// claim succeeded.
var ErrNoLease = errors.New("lease: no lease held")

// ErrUnassigned indicates the held instance has not been pointed at a
// guild yet. This is the normal idle state, not a failure.
var ErrUnassigned = errors.New("lease: instance not assigned to a guild")

// API is the slice of the backend surface the manager needs.
type API interface {
	GetUnclaimedInstance(ctx context.Context) (string, error)
	ClaimInstance(ctx context.Context, req backend.ClaimRequest) (backend.InstanceDetails, error)
	GetAssignedGuildOptions(ctx context.Context, instanceID string) (backend.GuildOptions, error)
}

// RuntimeHost is one guild's running bot runtime as the drivers see it.
// *host.Host implements it.
type RuntimeHost interface {
	board.Channel
	Start() error
	Stop() error
	BotUserID() string
	SetNickname(ctx context.Context, guildID, nick string) error
	SetStatus(text string) error
}

// HostFactory builds an inert runtime host for a bot token and guild
// options. The manager starts and stops the hosts it creates.
type HostFactory interface {
	Create(botToken string, opts backend.GuildOptions) (RuntimeHost, error)
}

// Lease is exclusive, time-bounded ownership of one instance. Replaced
// wholesale on every renewal; the token changes even when the instance
// stays the same.
type Lease struct {
	InstanceID string
	ClaimToken string
}

// Assignment pairs the guild options an instance is pointed at with the
// runtime host built against them. It owns the host exclusively.
type Assignment struct {
	Options backend.GuildOptions
	Host    RuntimeHost
}

// Manager acquires and renews the worker's instance lease and keeps the
// runtime host in line with the assigned guild options.
type Manager struct {
	api      API
	factory  HostFactory
	workerID string
	pinnedID string

	// claimMu serializes claim/renewal; guards lease and details.
	claimMu sync.Mutex
	lease   *Lease
	details backend.InstanceDetails

	// hostMu serializes host teardown/rebuild; guards assignment.
	hostMu     sync.Mutex
	assignment *Assignment
}

// NewManager creates a manager. pinnedInstanceID, when non-empty, skips
// unclaimed-instance discovery and always claims that id (pinned and dev
// deployments).
func NewManager(api API, factory HostFactory, workerID, pinnedInstanceID string) *Manager {
	return &Manager{
		api:      api,
		factory:  factory,
		workerID: workerID,
		pinnedID: pinnedInstanceID,
	}
}

// Reclaim acquires a lease when none is held, or renews the held one with
// a fresh claim token. A renewal the backend rejects as a conflict means
// another worker took the instance over: the held lease is dropped so the
// next call re-enters the acquisition path, and the conflict is returned.
func (m *Manager) Reclaim(ctx context.Context) (Lease, error) {
	m.claimMu.Lock()
	defer m.claimMu.Unlock()

	token := uuid.NewString()

	if m.lease == nil {
		instanceID := m.pinnedID
		if instanceID == "" {
			var err error
			instanceID, err = m.api.GetUnclaimedInstance(ctx)
			if err != nil {
				return Lease{}, fmt.Errorf("acquire lease: %w", err)
			}
		}
		details, err := m.api.ClaimInstance(ctx, backend.ClaimRequest{
			WorkerID:   m.workerID,
			InstanceID: instanceID,
			ClaimToken: token,
		})
		if err != nil {
			return Lease{}, fmt.Errorf("claim instance %s: %w", instanceID, err)
		}
		m.details = details
		m.lease = &Lease{InstanceID: details.ID, ClaimToken: token}
		log.Printf("[Lease] claimed instance %s as worker %s", details.ID, m.workerID)
		return *m.lease, nil
	}

	details, err := m.api.ClaimInstance(ctx, backend.ClaimRequest{
		WorkerID:      m.workerID,
		InstanceID:    m.lease.InstanceID,
		ClaimToken:    token,
		PreviousToken: m.lease.ClaimToken,
	})
	if err != nil {
		if backend.IsLeaseConflict(err) {
			log.Printf("[Lease] instance %s taken over by another worker, dropping lease", m.lease.InstanceID)
			m.lease = nil
			m.details = backend.InstanceDetails{}
		}
		return Lease{}, fmt.Errorf("renew lease: %w", err)
	}
	m.details = details
	m.lease = &Lease{InstanceID: details.ID, ClaimToken: token}
	return *m.lease, nil
}

// Current returns the held lease, if any.
func (m *Manager) Current() (Lease, bool) {
	m.claimMu.Lock()
	defer m.claimMu.Unlock()
	if m.lease == nil {
		return Lease{}, false
	}
	return *m.lease, true
}

// EnsureAssignment fetches the guild options for the held instance and
// returns a live assignment, rebuilding the runtime host when the options
// drifted from the ones the current host was built against. Returns
// ErrUnassigned while the instance is idle.
func (m *Manager) EnsureAssignment(ctx context.Context) (*Assignment, error) {
	m.claimMu.Lock()
	held := m.lease
	details := m.details
	m.claimMu.Unlock()
	if held == nil {
		return nil, ErrNoLease
	}

	opts, err := m.api.GetAssignedGuildOptions(ctx, held.InstanceID)
	if err != nil {
		if backend.IsNotFound(err) {
			return nil, ErrUnassigned
		}
		return nil, fmt.Errorf("fetch assignment: %w", err)
	}

	m.hostMu.Lock()
	defer m.hostMu.Unlock()

	if m.assignment != nil && m.assignment.Options.Equal(opts) {
		return m.assignment, nil
	}

	if m.assignment != nil {
		log.Printf("[Lease] guild options drifted for instance %s, rebuilding runtime host", held.InstanceID)
		if err := m.assignment.Host.Stop(); err != nil {
			log.Printf("[Lease] stopping superseded host: %v", err)
		}
		m.assignment = nil
	}

	h, err := m.factory.Create(details.BotToken, opts)
	if err != nil {
		return nil, fmt.Errorf("build runtime host: %w", err)
	}
	if err := h.Start(); err != nil {
		// Stop is safe after a failed Start.
		if stopErr := h.Stop(); stopErr != nil {
			log.Printf("[Lease] cleaning up failed host start: %v", stopErr)
		}
		return nil, fmt.Errorf("start runtime host: %w", err)
	}

	m.assignment = &Assignment{Options: opts, Host: h}
	log.Printf("[Lease] runtime host started for guild %s (%s)", opts.GuildID, opts.Name)
	return m.assignment, nil
}

// Assignment returns the current live assignment, if any, without touching
// the backend.
func (m *Manager) Assignment() (*Assignment, bool) {
	m.hostMu.Lock()
	defer m.hostMu.Unlock()
	if m.assignment == nil {
		return nil, false
	}
	return m.assignment, true
}

// Shutdown stops the running host, if any. Called once on worker exit.
func (m *Manager) Shutdown() {
	m.hostMu.Lock()
	defer m.hostMu.Unlock()
	if m.assignment == nil {
		return
	}
	if err := m.assignment.Host.Stop(); err != nil {
		log.Printf("[Lease] stopping host on shutdown: %v", err)
	}
	m.assignment = nil
}
