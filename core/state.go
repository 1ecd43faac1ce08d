package core

import "maps"

// Stop reasons recorded when a run ends before the model produced an
// unconditional answer.
const (
	// StopReasonMaxIterations marks a run that hit the agent iteration bound
	// while the model still requested tools.
	StopReasonMaxIterations = "max_iterations"
	// StopReasonStepLimit marks a run cut short by the graph engine's step bound.
	StopReasonStepLimit = "step_limit"
)

// AgentState is the value threaded through a graph run. It is treated as an
// immutable snapshot: nodes receive a copy and return a StateUpdate, and the
// engine produces the next snapshot via Merge.
type AgentState struct {
	// Messages is the ordered conversation. It only ever grows.
	Messages []Message `json:"messages"`
	// IterationCount counts visits of the agent (model) node.
	IterationCount int `json:"iteration_count"`
	// MaxIterations is the per-run safety bound consulted by routers.
	MaxIterations int `json:"max_iterations"`
	// FinalAnswer is populated only by a terminal node.
	FinalAnswer string `json:"final_answer,omitempty"`
	// Incomplete is set when the run was stopped by a safety bound.
	Incomplete bool `json:"incomplete,omitempty"`
	// StopReason names the bound that stopped an incomplete run.
	StopReason string `json:"stop_reason,omitempty"`
	// Aux holds auxiliary fields such as routing hints. Each key is replaced
	// independently on merge.
	Aux map[string]any `json:"aux,omitempty"`
}

// StateUpdate is the partial update returned by a node. Messages are
// appended; every other non-nil field replaces the current value.
type StateUpdate struct {
	Messages       []Message
	IterationCount *int
	FinalAnswer    *string
	Incomplete     *bool
	StopReason     *string
	Aux            map[string]any
}

// Ptr returns a pointer to v. It keeps StateUpdate literals short.
func Ptr[T any](v T) *T { return &v }

// NewState returns the initial state for a query.
func NewState(query string, maxIterations int) AgentState {
	return AgentState{
		Messages:      []Message{NewUserMessage(query)},
		MaxIterations: maxIterations,
	}
}

// Merge applies u to s and returns the resulting snapshot. Neither s nor u
// is modified and the result never shares slices or maps with them.
func (s AgentState) Merge(u StateUpdate) AgentState {
	next := s.Clone()

	if len(u.Messages) > 0 {
		next.Messages = append(next.Messages, CloneMessages(u.Messages)...)
	}

	if u.IterationCount != nil {
		next.IterationCount = *u.IterationCount
	}

	if u.FinalAnswer != nil {
		next.FinalAnswer = *u.FinalAnswer
	}

	if u.Incomplete != nil {
		next.Incomplete = *u.Incomplete
	}

	if u.StopReason != nil {
		next.StopReason = *u.StopReason
	}

	if len(u.Aux) > 0 {
		if next.Aux == nil {
			next.Aux = make(map[string]any, len(u.Aux))
		}

		maps.Copy(next.Aux, u.Aux)
	}

	return next
}

// Clone returns a deep copy of the state's slices and maps.
func (s AgentState) Clone() AgentState {
	s.Messages = CloneMessages(s.Messages)
	if s.Aux != nil {
		s.Aux = maps.Clone(s.Aux)
	}

	return s
}

// LastMessage returns the newest message, if any.
func (s AgentState) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}

	return s.Messages[len(s.Messages)-1], true
}

// LastAssistantMessage returns the newest message authored by the model.
func (s AgentState) LastAssistantMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}

	return Message{}, false
}

// AuxBool reads a boolean auxiliary field. Missing or non-bool values are false.
func (s AgentState) AuxBool(key string) bool {
	v, _ := s.Aux[key].(bool)
	return v
}

// AuxString reads a string auxiliary field.
func (s AgentState) AuxString(key string) string {
	v, _ := s.Aux[key].(string)
	return v
}
