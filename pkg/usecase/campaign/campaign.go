package campaign

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/adapter"
	"github.com/m-mizutani/quakead/pkg/policy"
	"github.com/m-mizutani/quakead/pkg/repository"
)

var (
	ErrUnavailable = goerr.New("data is not available from the bridge")
	ErrNoTarget    = goerr.New("no target selected")
	ErrNoDraft     = goerr.New("no email draft")
	ErrDenied      = goerr.New("outreach denied by policy")
	ErrNotConfig   = goerr.New("feature is not configured")
)

// UseCase assembles campaigns from bridge data and LLM-written copy.
type UseCase struct {
	store   repository.CampaignStore
	gemini  adapter.Gemini
	storage adapter.Storage
	policy  *policy.Policy
	now     func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

func WithGemini(g adapter.Gemini) Option {
	return func(uc *UseCase) {
		uc.gemini = g
	}
}

func WithStorage(s adapter.Storage) Option {
	return func(uc *UseCase) {
		uc.storage = s
	}
}

func WithPolicy(p *policy.Policy) Option {
	return func(uc *UseCase) {
		uc.policy = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates a campaign UseCase. Email generation needs WithGemini and
// export needs WithStorage.
func New(store repository.CampaignStore, opts ...Option) *UseCase {
	uc := &UseCase{
		store: store,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
