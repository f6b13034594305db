package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/kazuhrw/schedsense/ai/agent"
	"github.com/kazuhrw/schedsense/ai/llm"
	"github.com/kazuhrw/schedsense/internal/profile"
	"github.com/kazuhrw/schedsense/store"
)

// APIV1Service wires the chat endpoints to the agent core.
type APIV1Service struct {
	Profile      *profile.Profile
	Store        *store.Store
	LLMService   llm.Service
	Orchestrator *agent.Orchestrator
}

func NewAPIV1Service(p *profile.Profile, s *store.Store, svc llm.Service) *APIV1Service {
	service := &APIV1Service{
		Profile:    p,
		Store:      s,
		LLMService: svc,
	}
	if svc != nil {
		service.Orchestrator = agent.NewOrchestrator(s, svc, p)
	}
	return service
}

// RegisterRoutes mounts the v1 API on the given group.
func (s *APIV1Service) RegisterRoutes(g *echo.Group) {
	g.POST("/chat", s.Chat)
	g.GET("/chat/history", s.ChatHistory)
}
