package service

import (
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/GoPolymarket/hypergate/internal/config"
	"github.com/GoPolymarket/hypergate/internal/model"
)

const DefaultAccountID = "default"

// AccountManager resolves control-API keys to accounts and owns one rate
// limiter per account.
type AccountManager struct {
	mu             sync.RWMutex
	accounts       map[string]*model.Account // key: API key
	limiters       map[string]*rate.Limiter  // key: account ID
	defaultAccount *model.Account
}

func NewAccountManager(cfg *config.Config) *AccountManager {
	am := &AccountManager{
		accounts: make(map[string]*model.Account),
		limiters: make(map[string]*rate.Limiter),
	}

	for _, ac := range cfg.Accounts {
		qps := ac.RateLimit
		if qps <= 0 {
			qps = 10
		}
		am.Register(&model.Account{
			ID:       ac.ID,
			Name:     ac.Name,
			APIKey:   ac.APIKey,
			ReadOnly: ac.ReadOnly || cfg.Server.ReadOnly,
			Rate:     model.RateLimitConfig{QPS: qps, Burst: int(qps * 2)},
		})
	}
	if len(cfg.Accounts) > 0 {
		return am
	}

	// Single-operator mode keyed by auth.api_key.
	def := &model.Account{
		ID:       DefaultAccountID,
		Name:     "Default Operator",
		APIKey:   cfg.Auth.APIKey,
		ReadOnly: cfg.Server.ReadOnly,
		Rate:     model.RateLimitConfig{QPS: 10, Burst: 20},
	}
	am.Register(def)
	am.defaultAccount = def
	return am
}

func (am *AccountManager) Register(a *model.Account) {
	if a == nil {
		return
	}
	am.mu.Lock()
	defer am.mu.Unlock()
	am.accounts[a.APIKey] = a

	limit := rate.Limit(a.Rate.QPS)
	if limit == 0 {
		limit = rate.Inf
	}
	burst := a.Rate.Burst
	if burst == 0 {
		burst = 1
	}
	am.limiters[a.ID] = rate.NewLimiter(limit, burst)
}

func (am *AccountManager) ByAPIKey(apiKey string) (*model.Account, bool) {
	am.mu.RLock()
	defer am.mu.RUnlock()
	a, ok := am.accounts[apiKey]
	return a, ok
}

func (am *AccountManager) ByID(id string) (*model.Account, bool) {
	am.mu.RLock()
	defer am.mu.RUnlock()
	for _, a := range am.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// Default is the single-operator account, nil when accounts are configured.
func (am *AccountManager) Default() *model.Account {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return am.defaultAccount
}

func (am *AccountManager) List() []*model.Account {
	am.mu.RLock()
	defer am.mu.RUnlock()
	out := make([]*model.Account, 0, len(am.accounts))
	for _, a := range am.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (am *AccountManager) Limiter(accountID string) *rate.Limiter {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return am.limiters[accountID]
}
