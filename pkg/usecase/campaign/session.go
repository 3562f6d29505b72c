package campaign

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/service/bridge"
)

// Session is the working state of one operator: the bridge it talks to, the
// last target search and the draft being edited. A Session is not safe for
// concurrent use.
type Session struct {
	bridge bridge.Bridge

	Criteria        model.Criteria
	CampaignContext string
	Targets         []*model.Target
	Selected        *model.Target
	Draft           *model.EmailDraft
}

func NewSession(b bridge.Bridge) *Session {
	return &Session{
		bridge:   b,
		Criteria: model.DefaultCriteria(),
	}
}

func (s *Session) Bridge() bridge.Bridge { return s.bridge }

// Select makes the n-th (1-based) target of the last search current and
// drops any draft written for another target.
func (s *Session) Select(n int) (*model.Target, error) {
	if n < 1 || n > len(s.Targets) {
		return nil, goerr.Wrap(ErrNoTarget, "target index out of range",
			goerr.V("index", n), goerr.V("targets", len(s.Targets)))
	}

	t := s.Targets[n-1]
	if s.Selected != t {
		s.Draft = nil
	}
	s.Selected = t
	return t, nil
}

// Reset clears search results, selection, draft and campaign context. The
// bridge stays acquired.
func (s *Session) Reset() {
	s.Criteria = model.DefaultCriteria()
	s.CampaignContext = ""
	s.Targets = nil
	s.Selected = nil
	s.Draft = nil
}

// Close resets the session and releases the bridge.
func (s *Session) Close() error {
	s.Reset()
	if s.bridge == nil {
		return nil
	}
	if err := s.bridge.Stop(); err != nil {
		return goerr.Wrap(err, "failed to stop bridge", goerr.V("transport", s.bridge.Transport()))
	}
	return nil
}
