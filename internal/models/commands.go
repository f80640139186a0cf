package models

import (
	"encoding/json"
	"time"
)

// CommandKind is the remote-control command family.
type CommandKind string

const (
	CommandReserveNow        CommandKind = "RESERVE_NOW"
	CommandCancelReservation CommandKind = "CANCEL_RESERVATION"
	CommandStartSession      CommandKind = "START_SESSION"
	CommandStopSession       CommandKind = "STOP_SESSION"
	CommandUnlockConnector   CommandKind = "UNLOCK_CONNECTOR"
)

// ParseCommandKind maps a URL segment to a command kind.
func ParseCommandKind(s string) (CommandKind, bool) {
	switch CommandKind(s) {
	case CommandReserveNow, CommandCancelReservation, CommandStartSession,
		CommandStopSession, CommandUnlockConnector:
		return CommandKind(s), true
	}
	return "", false
}

// CommandState is the lifecycle of an outstanding command.
type CommandState string

const (
	CommandIssued         CommandState = "ISSUED"
	CommandResultReceived CommandState = "RESULT_RECEIVED"
	CommandForwarded      CommandState = "FORWARDED"
	CommandExpired        CommandState = "EXPIRED"
)

// UpstreamRef is where and how a command result must be relayed back when
// the command itself was received from a further upstream party.
type UpstreamRef struct {
	ResponseURL   string
	RequestID     string
	CorrelationID string
}

// Command is one outstanding remote command tracked by the correlation
// table. Result stays nil until the result callback is accepted.
type Command struct {
	ID       string
	Kind     CommandKind
	State    CommandState
	Payload  json.RawMessage
	Result   json.RawMessage
	Created  time.Time
	ResultAt *time.Time
	Upstream *UpstreamRef
}

// AllowedType is the outcome family of an authorization decision.
type AllowedType string

const (
	AllowedAccepted   AllowedType = "ALLOWED"
	AllowedBlocked    AllowedType = "BLOCKED"
	AllowedExpired    AllowedType = "EXPIRED"
	AllowedNoCredit   AllowedType = "NO_CREDIT"
	AllowedNotAllowed AllowedType = "NOT_ALLOWED"
)

type DisplayText struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// LocationReference narrows an authorization request to a location and
// optionally a subset of its EVSEs.
type LocationReference struct {
	LocationID string   `json:"location_id"`
	EvseUIDs   []string `json:"evse_uids,omitempty"`
}

// AuthorizationInfo is the decision returned for a token authorization
// request. Ephemeral: never stored by the hub.
type AuthorizationInfo struct {
	Allowed  AllowedType        `json:"allowed"`
	Token    *Token             `json:"token,omitempty"`
	Location *LocationReference `json:"location,omitempty"`
	Info     *DisplayText       `json:"info,omitempty"`
	AuthRef  string             `json:"authorization_reference"`
}
