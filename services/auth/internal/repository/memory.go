package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/touristalert/backend/services/auth/internal/domain"
	"github.com/touristalert/backend/services/auth/internal/secret"
)

// MemoryStore keeps everything in process. A transaction works on a copy of
// the state under a single lock and swaps it in on success, so concurrent
// transactions are fully serialised.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memTx{s: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

type memState struct {
	accounts map[uuid.UUID]domain.Account
	profiles map[uuid.UUID]domain.GuideProfile // keyed by account id
	codes    map[uuid.UUID]domain.OneTimeCode
}

func newMemState() *memState {
	return &memState{
		accounts: map[uuid.UUID]domain.Account{},
		profiles: map[uuid.UUID]domain.GuideProfile{},
		codes:    map[uuid.UUID]domain.OneTimeCode{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.codes {
		c.codes[k] = v
	}
	return c
}

// view returns a detached copy of the account with its profile attached.
func (s *memState) view(id uuid.UUID) *domain.Account {
	a, ok := s.accounts[id]
	if !ok {
		return nil
	}
	a.GuideProfile = nil
	if p, ok := s.profiles[id]; ok {
		a.GuideProfile = &p
	}
	return &a
}

type memTx struct {
	s *memState
}

func (t *memTx) Accounts() AccountRepository { return &memAccounts{s: t.s} }
func (t *memTx) Codes() CodeRepository       { return &memCodes{s: t.s} }

type memAccounts struct {
	s *memState
}

func (r *memAccounts) Create(_ context.Context, a *domain.Account) error {
	a.Normalize()
	if _, ok := r.s.accounts[a.ID]; ok {
		return fmt.Errorf("account %s already exists", a.ID)
	}
	for _, field := range []string{FieldEmail, FieldUsername, FieldPhone} {
		if v := uniqueValue(a, field); v != "" && r.taken(field, v, a.ID) {
			return domain.NewDuplicateError(field)
		}
	}
	if p := a.GuideProfile; p != nil && r.taken(FieldLicense, p.LicenseNumber, a.ID) {
		return domain.NewDuplicateError(FieldLicense)
	}

	stored := *a
	stored.GuideProfile = nil
	r.s.accounts[a.ID] = stored
	if p := a.GuideProfile; p != nil {
		p.AccountID = a.ID
		r.s.profiles[a.ID] = *p
	}
	return nil
}

func (r *memAccounts) FindByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.s.view(id), nil
}

func (r *memAccounts) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	email = strings.ToLower(email)
	for id, a := range r.s.accounts {
		if a.Email == email {
			return r.s.view(id), nil
		}
	}
	return nil, nil
}

func (r *memAccounts) LockByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.FindByID(ctx, id)
}

func (r *memAccounts) LockByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.FindByEmail(ctx, email)
}

func (r *memAccounts) Exists(_ context.Context, field, value string) (bool, error) {
	switch field {
	case FieldEmail, FieldUsername, FieldPhone, FieldLicense:
	default:
		return false, fmt.Errorf("unknown unique field %q", field)
	}
	if field == FieldEmail {
		value = strings.ToLower(value)
	}
	return r.taken(field, value, uuid.Nil), nil
}

func (r *memAccounts) Update(_ context.Context, a *domain.Account) error {
	a.Normalize()
	if _, ok := r.s.accounts[a.ID]; !ok {
		return domain.NewNotFoundError("account not found")
	}
	for _, field := range []string{FieldEmail, FieldUsername, FieldPhone} {
		if v := uniqueValue(a, field); v != "" && r.taken(field, v, a.ID) {
			return domain.NewDuplicateError(field)
		}
	}
	stored := *a
	stored.GuideProfile = nil
	stored.PasswordHash = r.s.accounts[a.ID].PasswordHash
	r.s.accounts[a.ID] = stored
	return nil
}

func (r *memAccounts) UpdateGuideStatus(_ context.Context, accountID uuid.UUID, status domain.GuideStatus, at time.Time) error {
	p, ok := r.s.profiles[accountID]
	if !ok {
		return domain.NewNotFoundError("Guide profile not found.")
	}
	p.Status = status
	p.UpdatedAt = at
	r.s.profiles[accountID] = p
	return nil
}

func (r *memAccounts) SetPassword(_ context.Context, id uuid.UUID, hash string, at time.Time) error {
	a, ok := r.s.accounts[id]
	if !ok {
		return domain.NewNotFoundError("account not found")
	}
	a.PasswordHash = hash
	a.UpdatedAt = at
	r.s.accounts[id] = a
	return nil
}

func (r *memAccounts) UpdateGuideBio(_ context.Context, accountID uuid.UUID, bio string, at time.Time) error {
	p, ok := r.s.profiles[accountID]
	if !ok {
		return domain.NewNotFoundError("Guide profile not found.")
	}
	p.Bio = bio
	p.UpdatedAt = at
	r.s.profiles[accountID] = p
	return nil
}

func (r *memAccounts) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.s.accounts[id]; !ok {
		return domain.NewNotFoundError("account not found")
	}
	delete(r.s.accounts, id)
	delete(r.s.profiles, id)
	for codeID, c := range r.s.codes {
		if c.AccountID == id {
			delete(r.s.codes, codeID)
		}
	}
	return nil
}

func (r *memAccounts) ListAccounts(_ context.Context, page domain.Page) ([]*domain.Account, error) {
	out := make([]*domain.Account, 0, len(r.s.accounts))
	for id := range r.s.accounts {
		out = append(out, r.s.view(id))
	}
	return paginate(out, page), nil
}

func (r *memAccounts) ListGuides(_ context.Context, f GuideFilter, page domain.Page) ([]*domain.Account, error) {
	var out []*domain.Account
	for id, a := range r.s.accounts {
		p, ok := r.s.profiles[id]
		if a.Role != domain.RoleGuide || !ok {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		if f.Active != nil && a.Active != *f.Active {
			continue
		}
		out = append(out, r.s.view(id))
	}
	return paginate(out, page), nil
}

// paginate orders newest first and applies the page window.
func paginate(out []*domain.Account, page domain.Page) []*domain.Account {
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if page.Offset >= len(out) {
		return nil
	}
	out = out[page.Offset:]
	if page.Limit > 0 && page.Limit < len(out) {
		out = out[:page.Limit]
	}
	return out
}

func (r *memAccounts) taken(field, value string, except uuid.UUID) bool {
	if field == FieldLicense {
		for accountID, p := range r.s.profiles {
			if accountID != except && p.LicenseNumber == value {
				return true
			}
		}
		return false
	}
	for id, a := range r.s.accounts {
		if id != except && uniqueValue(&a, field) == value {
			return true
		}
	}
	return false
}

func uniqueValue(a *domain.Account, field string) string {
	switch field {
	case FieldEmail:
		return a.Email
	case FieldUsername:
		return a.Username
	case FieldPhone:
		if a.PhoneNumber != nil {
			return *a.PhoneNumber
		}
	}
	return ""
}

type memCodes struct {
	s *memState
}

func (r *memCodes) Create(_ context.Context, c *domain.OneTimeCode) error {
	if _, ok := r.s.accounts[c.AccountID]; !ok {
		return fmt.Errorf("code owner %s does not exist", c.AccountID)
	}
	r.s.codes[c.ID] = *c
	return nil
}

func (r *memCodes) InvalidateUnused(_ context.Context, accountID uuid.UUID, purpose domain.Purpose) (int64, error) {
	var n int64
	for id, c := range r.s.codes {
		if c.AccountID == accountID && c.Purpose == purpose && !c.Used {
			c.Used = true
			r.s.codes[id] = c
			n++
		}
	}
	return n, nil
}

func (r *memCodes) DeleteUnused(_ context.Context, accountID uuid.UUID, purpose domain.Purpose) (int64, error) {
	return r.deleteWhere(func(c domain.OneTimeCode) bool {
		return c.AccountID == accountID && c.Purpose == purpose && !c.Used
	}), nil
}

func (r *memCodes) DeleteAll(_ context.Context, accountID uuid.UUID, purpose domain.Purpose) (int64, error) {
	return r.deleteWhere(func(c domain.OneTimeCode) bool {
		return c.AccountID == accountID && c.Purpose == purpose
	}), nil
}

func (r *memCodes) FindLatestUnused(_ context.Context, accountID uuid.UUID, purpose domain.Purpose, codeHash string) (*domain.OneTimeCode, error) {
	return r.latest(func(c domain.OneTimeCode) bool {
		return c.AccountID == accountID && c.Purpose == purpose && !c.Used && secret.Equal(c.CodeHash, codeHash)
	}), nil
}

func (r *memCodes) FindByResetToken(_ context.Context, accountID uuid.UUID, tokenHash string) (*domain.OneTimeCode, error) {
	return r.latest(func(c domain.OneTimeCode) bool {
		return c.AccountID == accountID && c.Purpose == domain.PurposeResetPassword &&
			c.ResetTokenHash != nil && secret.Equal(*c.ResetTokenHash, tokenHash)
	}), nil
}

func (r *memCodes) MarkUsed(_ context.Context, id uuid.UUID) error {
	c, ok := r.s.codes[id]
	if !ok {
		return domain.NewNotFoundError("code not found")
	}
	c.Used = true
	r.s.codes[id] = c
	return nil
}

func (r *memCodes) AttachResetToken(_ context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	c, ok := r.s.codes[id]
	if !ok {
		return domain.NewNotFoundError("code not found")
	}
	c.Used = true
	c.ResetTokenHash = &tokenHash
	c.ResetTokenExpiresAt = &expiresAt
	r.s.codes[id] = c
	return nil
}

func (r *memCodes) CountUnused(_ context.Context, accountID uuid.UUID, purpose domain.Purpose) (int, error) {
	n := 0
	for _, c := range r.s.codes {
		if c.AccountID == accountID && c.Purpose == purpose && !c.Used {
			n++
		}
	}
	return n, nil
}

func (r *memCodes) Purge(_ context.Context, before time.Time) (int64, error) {
	return r.deleteWhere(func(c domain.OneTimeCode) bool {
		if !c.Used {
			return c.ExpiresAt.Before(before)
		}
		return c.CreatedAt.Before(before) &&
			(c.ResetTokenExpiresAt == nil || c.ResetTokenExpiresAt.Before(before))
	}), nil
}

func (r *memCodes) deleteWhere(match func(domain.OneTimeCode) bool) int64 {
	var n int64
	for id, c := range r.s.codes {
		if match(c) {
			delete(r.s.codes, id)
			n++
		}
	}
	return n
}

func (r *memCodes) latest(match func(domain.OneTimeCode) bool) *domain.OneTimeCode {
	var best *domain.OneTimeCode
	for _, c := range r.s.codes {
		if !match(c) {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			c := c
			best = &c
		}
	}
	return best
}
