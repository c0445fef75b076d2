package model

import (
	"encoding/json"
	"fmt"
)

// AgentKind identifies one of the specialist agents the router can dispatch to.
// The set is closed: the router must pick exactly one member, and anything
// else is a hard failure of the turn.
type AgentKind string

const (
	AgentResearcher AgentKind = "researcher"
	AgentCoder      AgentKind = "coder"
	AgentGeneral    AgentKind = "general_assistant"
)

// AgentKinds lists every routable agent.
func AgentKinds() []AgentKind {
	return []AgentKind{AgentResearcher, AgentCoder, AgentGeneral}
}

// String returns the wire representation of the agent kind.
func (k AgentKind) String() string {
	return string(k)
}

// Valid reports whether the kind is a member of the closed enumeration.
func (k AgentKind) Valid() bool {
	switch k {
	case AgentResearcher, AgentCoder, AgentGeneral:
		return true
	default:
		return false
	}
}

// ParseAgentKind normalises a raw value into a member of the enumeration.
// Unknown values are an error, never a default route.
func ParseAgentKind(s string) (AgentKind, error) {
	k := AgentKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown agent kind %q", s)
	}
	return k, nil
}

// RouteDecision is the router's structured output: the branch target plus a
// short free-text justification kept for audit logging.
type RouteDecision struct {
	Next      AgentKind `json:"next"`
	Reasoning string    `json:"reasoning"`
}

// UnmarshalJSON enforces the closed enumeration at decode time.
func (d *RouteDecision) UnmarshalJSON(b []byte) error {
	var raw struct {
		Next      string `json:"next"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	next, err := ParseAgentKind(raw.Next)
	if err != nil {
		return err
	}
	d.Next = next
	d.Reasoning = raw.Reasoning
	return nil
}
