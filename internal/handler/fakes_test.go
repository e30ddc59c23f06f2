package handler

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/utils"
)

// memUsers is an in-memory UserService/UserDirectory. Passwords are
// stored as "hash:<plain>" to keep the tests fast.
type memUsers struct {
	mu     sync.Mutex
	users  map[string]model.User
	nextID uint64
	err    error // returned by every call when set
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]model.User{}} }

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.User{}, m.err
	}
	u, ok := m.users[repository.NormalizeEmail(email)]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) VerifyPassword(plain, hash string) bool { return hash == "hash:"+plain }

func (m *memUsers) CreateUser(_ context.Context, email, password string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.User{}, m.err
	}
	email = repository.NormalizeEmail(email)
	if _, ok := m.users[email]; ok {
		return model.User{}, repository.ErrEmailExists
	}
	m.nextID++
	u := model.User{ID: m.nextID, Email: email, PasswordHash: "hash:" + password, Role: model.RoleUser, CreatedAt: time.Now()}
	m.users[email] = u
	return u, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, u model.User, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.Email]
	if !ok {
		return repository.ErrNotFound
	}
	cur.PasswordHash = "hash:" + newPassword
	m.users[u.Email] = cur
	return nil
}

func (m *memUsers) VerifyUserEmail(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.Email]
	if !ok {
		return repository.ErrNotFound
	}
	cur.IsVerified, cur.IsActive = true, true
	m.users[u.Email] = cur
	return nil
}

func (m *memUsers) ListUsers(_ context.Context, limit, offset int) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []model.User
	for id := uint64(1); id <= m.nextID; id++ {
		for _, u := range m.users {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memUsers) GetUserByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

// put stores u directly, bypassing CreateUser.
func (m *memUsers) put(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		m.nextID++
		u.ID = m.nextID
	} else if u.ID > m.nextID {
		m.nextID = u.ID
	}
	m.users[u.Email] = u
}

func (m *memUsers) delete(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, email)
}

// recordingMail captures dispatched jobs synchronously.
type recordingMail struct {
	mu   sync.Mutex
	jobs []queue.EmailJob
}

func (r *recordingMail) Dispatch(_ context.Context, job queue.EmailJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
}

func (r *recordingMail) last() (queue.EmailJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.jobs) == 0 {
		return queue.EmailJob{}, false
	}
	return r.jobs[len(r.jobs)-1], true
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret: "handler-secret",
		AccessTTL: 30 * time.Minute,
		VerifyTTL: 24 * time.Hour,
		ResetTTL:  30 * time.Minute,
	}
}

func issue(cfg config.Config, email string, p utils.Purpose, ttl time.Duration) string {
	tok, err := utils.IssueToken(cfg.JWTSecret, email, p, ttl)
	if err != nil {
		panic(err)
	}
	return tok.Token
}
