package service

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/aipowereddevteam/auth2026/internal/audit"
	"github.com/aipowereddevteam/auth2026/internal/domain"
	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
)

// memPrincipalRepository is an in-memory PrincipalRepository with the same
// conditional-write semantics as the Postgres one.
type memPrincipalRepository struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.Principal
}

func newMemPrincipalRepository() *memPrincipalRepository {
	return &memPrincipalRepository{byID: make(map[int64]*domain.Principal)}
}

func clonePrincipal(p *domain.Principal) *domain.Principal {
	c := *p
	c.BackupCodes = slices.Clone(p.BackupCodes)
	return &c
}

func (r *memPrincipalRepository) Create(_ context.Context, p *domain.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == p.Email {
			return domain.ErrEmailTaken
		}
	}
	r.nextID++
	p.ID = r.nextID
	r.byID[p.ID] = clonePrincipal(p)
	return nil
}

func (r *memPrincipalRepository) find(match func(*domain.Principal) bool) (*domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if match(p) {
			return clonePrincipal(p), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memPrincipalRepository) FindByID(_ context.Context, id int64) (*domain.Principal, error) {
	return r.find(func(p *domain.Principal) bool { return p.ID == id })
}

func (r *memPrincipalRepository) FindByEmail(_ context.Context, email string) (*domain.Principal, error) {
	email = strings.ToLower(email)
	return r.find(func(p *domain.Principal) bool { return p.Email == email })
}

func (r *memPrincipalRepository) FindByExternalID(_ context.Context, externalID string) (*domain.Principal, error) {
	return r.find(func(p *domain.Principal) bool { return p.ExternalID != "" && p.ExternalID == externalID })
}

func (r *memPrincipalRepository) update(id int64, fn func(*domain.Principal) bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	return fn(p), nil
}

func (r *memPrincipalRepository) LinkExternalID(_ context.Context, id int64, externalID string) error {
	_, err := r.update(id, func(p *domain.Principal) bool {
		if p.ExternalID == "" {
			p.ExternalID = externalID
		}
		return true
	})
	return err
}

func (r *memPrincipalRepository) UpdateMfaSecret(_ context.Context, id int64, pendingSecret string) error {
	_, err := r.update(id, func(p *domain.Principal) bool {
		p.MFAPendingSecret = pendingSecret
		return true
	})
	return err
}

func (r *memPrincipalRepository) EnableMfa(_ context.Context, id int64, pendingSecret string, backupHashes []string) (bool, error) {
	return r.update(id, func(p *domain.Principal) bool {
		if p.MFAPendingSecret != pendingSecret {
			return false
		}
		p.MFASecret, p.MFAPendingSecret, p.MFAEnabled = pendingSecret, "", true
		p.BackupCodes = slices.Clone(backupHashes)
		return true
	})
}

func (r *memPrincipalRepository) UpdateBackupCodes(_ context.Context, id int64, backupHashes []string) error {
	_, err := r.update(id, func(p *domain.Principal) bool {
		p.BackupCodes = slices.Clone(backupHashes)
		return true
	})
	return err
}

func (r *memPrincipalRepository) ConsumeBackupCode(_ context.Context, id int64, hash string) (bool, error) {
	return r.update(id, func(p *domain.Principal) bool {
		i := slices.Index(p.BackupCodes, hash)
		if i < 0 {
			return false
		}
		p.BackupCodes = slices.Delete(p.BackupCodes, i, i+1)
		return true
	})
}

func (r *memPrincipalRepository) ClearMfaState(_ context.Context, id int64) error {
	_, err := r.update(id, func(p *domain.Principal) bool {
		p.MFAEnabled, p.MFASecret, p.MFAPendingSecret, p.BackupCodes = false, "", "", nil
		return true
	})
	return err
}

func (r *memPrincipalRepository) UpdateRefreshHash(_ context.Context, id int64, hash string) error {
	_, err := r.update(id, func(p *domain.Principal) bool {
		p.HashedRefreshToken = hash
		return true
	})
	return err
}

func (r *memPrincipalRepository) SwapRefreshHash(_ context.Context, id int64, oldHash, newHash string) (bool, error) {
	return r.update(id, func(p *domain.Principal) bool {
		if p.HashedRefreshToken != oldHash {
			return false
		}
		p.HashedRefreshToken = newHash
		return true
	})
}

// --- Mock Principal Repository ---

type mockPrincipalRepository struct {
	mock.Mock
}

func (m *mockPrincipalRepository) principal(args mock.Arguments) (*domain.Principal, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Principal), args.Error(1)
}

func (m *mockPrincipalRepository) Create(ctx context.Context, p *domain.Principal) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPrincipalRepository) FindByID(ctx context.Context, id int64) (*domain.Principal, error) {
	return m.principal(m.Called(ctx, id))
}

func (m *mockPrincipalRepository) FindByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	return m.principal(m.Called(ctx, email))
}

func (m *mockPrincipalRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.Principal, error) {
	return m.principal(m.Called(ctx, externalID))
}

func (m *mockPrincipalRepository) LinkExternalID(ctx context.Context, id int64, externalID string) error {
	return m.Called(ctx, id, externalID).Error(0)
}

func (m *mockPrincipalRepository) UpdateMfaSecret(ctx context.Context, id int64, pendingSecret string) error {
	return m.Called(ctx, id, pendingSecret).Error(0)
}

func (m *mockPrincipalRepository) EnableMfa(ctx context.Context, id int64, pendingSecret string, backupHashes []string) (bool, error) {
	args := m.Called(ctx, id, pendingSecret, backupHashes)
	return args.Bool(0), args.Error(1)
}

func (m *mockPrincipalRepository) UpdateBackupCodes(ctx context.Context, id int64, backupHashes []string) error {
	return m.Called(ctx, id, backupHashes).Error(0)
}

func (m *mockPrincipalRepository) ConsumeBackupCode(ctx context.Context, id int64, hash string) (bool, error) {
	args := m.Called(ctx, id, hash)
	return args.Bool(0), args.Error(1)
}

func (m *mockPrincipalRepository) ClearMfaState(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPrincipalRepository) UpdateRefreshHash(ctx context.Context, id int64, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

func (m *mockPrincipalRepository) SwapRefreshHash(ctx context.Context, id int64, oldHash, newHash string) (bool, error) {
	args := m.Called(ctx, id, oldHash, newHash)
	return args.Bool(0), args.Error(1)
}

// --- Policy stores ---

type memResourceStore map[int64]*domain.Resource

func (s memResourceStore) GetResource(_ context.Context, id int64) (*domain.Resource, error) {
	r, ok := s[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return r, nil
}

type memGroupStore map[int64][]int64

func (s memGroupStore) IsMember(_ context.Context, groupID, principalID int64) (bool, error) {
	return slices.Contains(s[groupID], principalID), nil
}

// --- Auditor ---

type recordingAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *recordingAuditor) Record(_ context.Context, e audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *recordingAuditor) actions() []audit.Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]audit.Action, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

func (a *recordingAuditor) last() audit.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[len(a.entries)-1]
}
