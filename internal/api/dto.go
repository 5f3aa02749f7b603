package api

import "time"

// RegisterAgentRequest is the body of POST /api/v1/agents.
type RegisterAgentRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Endpoint     string   `json:"endpoint"`
	Capabilities []string `json:"capabilities"`
	Category     string   `json:"category"`
	IsPublic     bool     `json:"is_public"`
	IsFree       bool     `json:"is_free"`
}

// AgentResponse is the representation of an ent.Agent returned to clients.
type AgentResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Endpoint        string    `json:"endpoint"`
	Capabilities    []string  `json:"capabilities"`
	Category        string    `json:"category"`
	Status          string    `json:"status"`
	TrustScore      float64   `json:"trust_score"`
	IsPublic        bool      `json:"is_public"`
	IsFree          bool      `json:"is_free"`
	TotalCalls      int       `json:"total_calls"`
	SuccessfulCalls int       `json:"successful_calls"`
	CreatedAt       time.Time `json:"created_at"`
}

// SendMessageRequest is the body of POST /api/v1/a2a/messages.
type SendMessageRequest struct {
	FromAgentID      string                 `json:"from_agent_id"`
	ToAgentID        *string                `json:"to_agent_id,omitempty"`
	ToAddress        *string                `json:"to_address,omitempty"`
	MessageType      string                 `json:"message_type"`
	Content          map[string]interface{} `json:"content"`
	RequiresResponse bool                   `json:"requires_response"`
	IdempotencyKey   *string                `json:"idempotency_key,omitempty"`
	ConversationID   *string                `json:"conversation_id,omitempty"`
}

// SendMessageResponse is the body returned from a successful send.
type SendMessageResponse struct {
	MessageID      string `json:"message_id"`
	Status         string `json:"status"`
	ConversationID string `json:"conversation_id"`
}

// InboxEntryResponse is a single entry in the GET /api/v1/a2a/inbox listing.
type InboxEntryResponse struct {
	MessageID      string                 `json:"message_id"`
	ConversationID string                 `json:"conversation_id"`
	FromAgentID    string                 `json:"from_agent_id"`
	MessageType    string                 `json:"message_type"`
	Content        map[string]interface{} `json:"content"`
	Delivered      bool                   `json:"delivered"`
	Acked          bool                   `json:"acked"`
	CreatedAt      time.Time              `json:"created_at"`
}

// CreateContractRequest is the body of POST /api/v1/contracts.
type CreateContractRequest struct {
	Intent        string                 `json:"intent"`
	Context       map[string]interface{} `json:"context"`
	RewardAmount  float64                `json:"reward_amount"`
	AwardStrategy string                 `json:"award_strategy"`
	ExpiresInSec  *int                   `json:"expires_in_seconds,omitempty"`
}

// ContractResponse is the representation of an ent.Contract.
type ContractResponse struct {
	ID            string     `json:"id"`
	Issuer        string     `json:"issuer"`
	Intent        string     `json:"intent"`
	RewardAmount  float64    `json:"reward_amount"`
	Status        string     `json:"status"`
	AwardedTo     *string    `json:"awarded_to,omitempty"`
	AwardStrategy string     `json:"award_strategy"`
	CreatedAt     time.Time  `json:"created_at"`
	AwardedAt     *time.Time `json:"awarded_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// CreateBidRequest is the body of POST /api/v1/contracts/:id/bids.
type CreateBidRequest struct {
	AgentID    string  `json:"agent_id"`
	Price      float64 `json:"price"`
	ETASeconds int     `json:"eta_seconds"`
	Confidence float64 `json:"confidence"`
}

// DeliverRequest is the body of POST /api/v1/contracts/:id/deliver.
type DeliverRequest struct {
	AgentID string                 `json:"agent_id"`
	Data    map[string]interface{} `json:"data"`
}

// ValidateRequest is the body of POST /api/v1/contracts/:id/validate.
type ValidateRequest struct {
	Score float64 `json:"score"`
}

// CreatePlanRequest is the body of POST /api/v1/orchestrator/plans.
type CreatePlanRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
}

// PlanResponse is the body returned from a completed orchestration run.
type PlanResponse struct {
	PlanID     string  `json:"plan_id"`
	Pattern    string  `json:"pattern"`
	Output     string  `json:"output"`
	Confidence float64 `json:"confidence"`
}

// PlanStepResponse is a single DAG node's execution record.
type PlanStepResponse struct {
	ID         string   `json:"id"`
	NodeID     string   `json:"node_id"`
	Level      int      `json:"level"`
	AgentID    *string  `json:"agent_id,omitempty"`
	Status     string   `json:"status"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// PlanDetailResponse is the body of GET /api/v1/orchestrator/plans/:id.
type PlanDetailResponse struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	Query      string             `json:"query"`
	Pattern    string             `json:"pattern"`
	Status     string             `json:"status"`
	Confidence *float64           `json:"confidence,omitempty"`
	Steps      []PlanStepResponse `json:"steps"`
}

// FederationInboxResponse is the body returned from a successful inbound
// federation delivery.
type FederationInboxResponse struct {
	Status         string `json:"status"`
	Delivered      bool   `json:"delivered"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
}
