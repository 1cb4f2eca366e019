package mockapi

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/groupbuy-console/internal/services/console/account"
	"golang.org/x/crypto/bcrypt"
)

// Seed is an account created when the mock starts.
type Seed struct {
	Profile  account.Profile
	Password string
}

// DefaultSeeds are the accounts documented for local development.
func DefaultSeeds() []Seed {
	return []Seed{
		{
			Password: "secret123",
			Profile: account.Profile{
				ID: 1, Username: "alice", Nickname: "Alice", Email: "alice@groupbuy.test",
				Role: "admin", Status: "active",
				Permissions: account.NewPermissionSet("merchant:review", "order:export", "user:manage"),
			},
		},
		{
			Password: "operator123",
			Profile: account.Profile{
				ID: 2, Username: "bob", Nickname: "Bob", Email: "bob@groupbuy.test",
				Role: "operator", Status: "active",
				Permissions: account.NewPermissionSet("merchant:review", "order:export"),
			},
		},
		{
			Password: "finance123",
			Profile: account.Profile{
				ID: 3, Username: "fiona", Nickname: "Fiona", Role: "finance", Status: "active",
				Permissions: account.NewPermissionSet("order:export"),
			},
		},
		{
			Password: "disabled123",
			Profile: account.Profile{ID: 4, Username: "dave", Role: "operator", Status: "disabled"},
		},
	}
}

type accountRecord struct {
	profile      account.Profile
	passwordHash []byte
}

// accounts is the in-memory administrator table.
type accounts struct {
	mu     sync.RWMutex
	cost   int
	byName map[string]*accountRecord
	now    func() time.Time
}

func newAccounts(seeds []Seed, cost int, now func() time.Time) (*accounts, error) {
	a := &accounts{cost: cost, byName: make(map[string]*accountRecord, len(seeds)), now: now}
	for _, seed := range seeds {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", seed.Profile.Username, err)
		}
		profile := seed.Profile
		a.byName[profile.Username] = &accountRecord{profile: profile, passwordHash: hash}
	}
	return a, nil
}

// authenticate returns the profile when the password matches.
func (a *accounts) authenticate(username, password string) (account.Profile, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	record, ok := a.byName[username]
	if !ok {
		return account.Profile{}, false
	}
	if bcrypt.CompareHashAndPassword(record.passwordHash, []byte(password)) != nil {
		return account.Profile{}, false
	}
	record.profile.LastLoginAt = a.now().UTC().Format(time.RFC3339)
	return *record.profile.Clone(), true
}

func (a *accounts) lookup(username string) (account.Profile, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	record, ok := a.byName[username]
	if !ok {
		return account.Profile{}, false
	}
	return *record.profile.Clone(), true
}

func (a *accounts) setPassword(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	record, ok := a.byName[username]
	if !ok {
		return fmt.Errorf("unknown account %q", username)
	}
	record.passwordHash = hash
	return nil
}

func (a *accounts) usernames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.byName))
	for name := range a.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
