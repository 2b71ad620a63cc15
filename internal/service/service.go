package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/nudge/internal/config"
	"github.com/xiaot623/nudge/internal/dispatch"
	"github.com/xiaot623/nudge/internal/domain"
	"github.com/xiaot623/nudge/internal/repository"
	"github.com/xiaot623/nudge/policy"
)

// Moderator classifies outgoing peer messages.
type Moderator interface {
	Classify(ctx context.Context, text string) (domain.Verdict, error)
}

// Advisor produces Nugget replies.
type Advisor interface {
	GetAdvice(ctx context.Context, groupID, ownerID, aboutID, newMessage string) (string, error)
}

// Dispatcher delivers a logged nudge.
type Dispatcher interface {
	Dispatch(ctx context.Context, nudge *domain.Nudge, details dispatch.Details) dispatch.Result
}

type Service struct {
	store        store.Store
	moderator    Moderator
	advisor      Advisor
	dispatcher   Dispatcher
	config       *config.Config
	policyEngine *policy.Engine
	logger       *zap.Logger
}

func New(store store.Store, moderator Moderator, advisor Advisor, dispatcher Dispatcher, cfg *config.Config, policyEngine *policy.Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        store,
		moderator:    moderator,
		advisor:      advisor,
		dispatcher:   dispatcher,
		config:       cfg,
		policyEngine: policyEngine,
		logger:       logger,
	}
}

// aiContext detaches ctx from the caller so an abandoned request does not
// cancel generation already in flight, and bounds it by LLMTimeout.
func (s *Service) aiContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := 30 * time.Second
	if s.config != nil && s.config.LLMTimeout > 0 {
		timeout = s.config.LLMTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
