// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Assembly state constants
const (
	AssemblyDraft     = "draft"
	AssemblyActive    = "active"
	AssemblyFinalized = "finalized"
)

// Assembly actions accepted by SetAssemblyState
const (
	ActionActivate  = "activate"
	ActionFinalize  = "finalize"
	ActionReopen    = "reopen"
	ActionResetDemo = "reset_demo"
)

// Question state constants
const (
	QuestionPending = "pending"
	QuestionOpen    = "open"
	QuestionClosed  = "closed"
)

// Voting mode constants
const (
	ModeCoefficient = "coefficient"
	ModeNominal     = "nominal"
)

// Power of attorney states
const (
	PowerActive  = "active"
	PowerRevoked = "revoked"
)

// Eligibility sources
const (
	SourceDirect = "direct"
	SourceProxy  = "proxy"
)

// Credit transaction kinds
const (
	CreditTopUp      = "topup"
	CreditActivation = "activation"
	CreditReopen     = "reopen"
)

// Session roles issued by the membership layer
const (
	RoleAdmin   = "admin"
	RoleVoter   = "voter"
	RoleBilling = "billing"
)

// Domain types

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Unit struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Tower          string    `json:"tower"`
	Number         string    `json:"number"`
	Coefficient    float64   `json:"coefficient"`
	OwnerName      string    `json:"owner_name"`
	OwnerEmail     string    `json:"owner_email,omitempty"`
	OwnerPhone     string    `json:"owner_phone,omitempty"`
	IsDemo         bool      `json:"is_demo"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Label is the display key of a unit, unique within its organization and universe.
func (u Unit) Label() string {
	if u.Tower == "" {
		return u.Number
	}
	return u.Tower + "-" + u.Number
}

type Assembly struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Title          string     `json:"title"`
	State          string     `json:"state"`
	IsDemo         bool       `json:"is_demo"`
	Paid           bool       `json:"paid"`
	ReopenCount    int        `json:"reopen_count"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty"`
	FinalizedAt    *time.Time `json:"finalized_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Question struct {
	ID         string     `json:"id"`
	AssemblyID string     `json:"assembly_id"`
	Text       string     `json:"text"`
	State      string     `json:"state"`
	Mode       string     `json:"mode"`
	Threshold  *float64   `json:"threshold,omitempty"`
	Archived   bool       `json:"archived"`
	Position   int        `json:"position"`
	OpenedAt   *time.Time `json:"opened_at,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Options    []Option   `json:"options"`
}

type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	Color      string `json:"color"`
	Position   int    `json:"position"`
}

type PowerOfAttorney struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	AssemblyID     string     `json:"assembly_id"`
	GrantorUnitID  string     `json:"grantor_unit_id"`
	ReceiverHandle string     `json:"receiver_handle"`
	ReceiverUnitID *string    `json:"receiver_unit_id,omitempty"`
	State          string     `json:"state"`
	CreatedAt      time.Time  `json:"created_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
}

type Vote struct {
	QuestionID  string    `json:"question_id"`
	UnitID      string    `json:"unit_id"`
	OptionID    string    `json:"option_id"`
	ActorHandle string    `json:"actor_handle"`
	ViaProxy    bool      `json:"via_proxy"`
	IPHash      *string   `json:"-"` // Never expose in JSON
	UserAgent   *string   `json:"-"` // Never expose in JSON
	CastAt      time.Time `json:"cast_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VoteAuditEntry is one accepted cast, kept even after the vote is replaced.
type VoteAuditEntry struct {
	ID          string    `json:"id"`
	QuestionID  string    `json:"question_id"`
	UnitID      string    `json:"unit_id"`
	OptionID    string    `json:"option_id"`
	ActorHandle string    `json:"actor_handle"`
	ViaProxy    bool      `json:"via_proxy"`
	IPHash      *string   `json:"ip_hash,omitempty"`
	UserAgent   *string   `json:"user_agent,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// ClientMeta is the audit metadata captured from the caller's request.
type ClientMeta struct {
	ClientIP  string
	UserAgent string
}

type AttendanceRecord struct {
	AssemblyID  string    `json:"assembly_id"`
	UnitID      string    `json:"unit_id"`
	ActorHandle string    `json:"actor_handle"`
	ConfirmedAt time.Time `json:"confirmed_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

type CreditTransaction struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	AssemblyID     *string   `json:"assembly_id,omitempty"`
	Kind           string    `json:"kind"`
	Amount         int64     `json:"amount"`
	BalanceAfter   int64     `json:"balance_after"`
	CreatedAt      time.Time `json:"created_at"`
}

// UnitRef is one entry of a resolved eligibility set.
type UnitRef struct {
	UnitID           string  `json:"unit_id"`
	Tower            string  `json:"tower"`
	Number           string  `json:"number"`
	Coefficient      float64 `json:"coefficient"`
	Source           string  `json:"source"`
	GrantorOwnerName string  `json:"grantor_owner_name,omitempty"`
	PowerID          string  `json:"power_id,omitempty"`
}

// Engine result types

type QuorumStats struct {
	AssemblyID             string  `json:"assembly_id"`
	IsDemo                 bool    `json:"is_demo"`
	TotalUnits             int     `json:"total_units"`
	VotersCount            int     `json:"voters_count"`
	TotalCoefficient       float64 `json:"total_coefficient"`
	PresentCoefficient     float64 `json:"present_coefficient"`
	NominalPercent         float64 `json:"nominal_percent"`
	CoefficientPercent     float64 `json:"coefficient_percent"`
	QuorumReached          bool    `json:"quorum_reached"`
	QuorumThresholdPercent float64 `json:"quorum_threshold_percent"`
}

type AttendanceStats struct {
	QuorumStats
	ConnectedCount              int     `json:"connected_count"`
	ConnectedNominalPercent     float64 `json:"connected_nominal_percent"`
	ConnectedCoefficientPercent float64 `json:"connected_coefficient_percent"`
}

// AttendanceReport is the admin view of attendance.
type AttendanceReport struct {
	AttendanceStats
	Records []AttendanceRecord `json:"records"`
}

type OptionResult struct {
	OptionID         string  `json:"option_id"`
	Text             string  `json:"text"`
	Color            string  `json:"color"`
	Position         int     `json:"position"`
	VotesCount       int     `json:"votes_count"`
	VotesCoefficient float64 `json:"votes_coefficient"`
	Percent          float64 `json:"percent"`
	Passes           bool    `json:"passes"`
}

type TallyStats struct {
	QuestionID               string         `json:"question_id"`
	AssemblyID               string         `json:"assembly_id"`
	State                    string         `json:"state"`
	Mode                     string         `json:"mode"`
	Archived                 bool           `json:"archived"`
	Threshold                float64        `json:"threshold"`
	TotalUnits               int            `json:"total_units"`
	TotalCoefficient         float64        `json:"total_coefficient"`
	VotersCount              int            `json:"voters_count"`
	VotersCoefficient        float64        `json:"voters_coefficient"`
	ParticipationNominal     float64        `json:"participation_nominal"`
	ParticipationCoefficient float64        `json:"participation_coefficient"`
	Options                  []OptionResult `json:"options"`
	ThresholdWarning         bool           `json:"threshold_warning"`
}

// ResultSnapshot is a frozen tally written for the minutes when a question closes.
type ResultSnapshot struct {
	ID         string     `json:"id"`
	QuestionID string     `json:"question_id"`
	AssemblyID string     `json:"assembly_id"`
	Seq        int        `json:"seq"` // Per-question, increases with each close
	ComputedAt time.Time  `json:"computed_at"`
	InputsHash string     `json:"inputs_hash"` // Hash of the vote rows the tally was computed from
	Results    TallyStats `json:"results"`
}

// Request types

type ImportUnitsRequest struct {
	IsDemo bool                `json:"is_demo"`
	Units  []ImportUnitRequest `json:"units" validate:"required,min=1,dive"`
}

type ImportUnitRequest struct {
	Tower       string  `json:"tower" validate:"max=50"`
	Number      string  `json:"number" validate:"required,max=50"`
	Coefficient float64 `json:"coefficient" validate:"gt=0,lte=100"`
	OwnerName   string  `json:"owner_name" validate:"max=200"`
	OwnerEmail  string  `json:"owner_email" validate:"omitempty,email"`
	OwnerPhone  string  `json:"owner_phone" validate:"omitempty,min=7,max=30"`
}

type CreateAssemblyRequest struct {
	Title  string `json:"title" validate:"required,max=200"`
	IsDemo bool   `json:"is_demo"`
}

type AssemblyStateRequest struct {
	Action string `json:"action" validate:"required,oneof=activate finalize reopen reset_demo"`
}

type CreateQuestionRequest struct {
	Text      string                `json:"text" validate:"required,max=1000"`
	Mode      string                `json:"mode" validate:"omitempty,oneof=coefficient nominal"`
	Threshold *float64              `json:"threshold" validate:"omitempty,gt=0,lte=100"`
	Options   []CreateOptionRequest `json:"options" validate:"required,min=2,dive"`
}

type CreateOptionRequest struct {
	Text  string `json:"text" validate:"required,max=500"`
	Color string `json:"color" validate:"max=20"`
}

type QuestionStateRequest struct {
	State string `json:"state" validate:"required,oneof=pending open closed"`
}

type ArchiveQuestionRequest struct {
	Archived bool `json:"archived"`
}

type CastVoteRequest struct {
	UnitID   string `json:"unit_id" validate:"required"`
	OptionID string `json:"option_id" validate:"required"`
}

type RecordAttendanceRequest struct {
	UnitID string `json:"unit_id" validate:"required"`
}

type GrantPowerRequest struct {
	GrantorUnitID  string  `json:"grantor_unit_id" validate:"required"`
	ReceiverHandle string  `json:"receiver_handle" validate:"required,max=200"`
	ReceiverUnitID *string `json:"receiver_unit_id"`
}

type TopUpRequest struct {
	Amount int64 `json:"amount" validate:"gt=0"`
}

// Response types

type ImportUnitsResponse struct {
	Imported         int     `json:"imported"`
	CoefficientSum   float64 `json:"coefficient_sum"`
	CoefficientValid bool    `json:"coefficient_valid"`
}

type UnitListResponse struct {
	Units            []Unit  `json:"units"`
	CoefficientSum   float64 `json:"coefficient_sum"`
	CoefficientValid bool    `json:"coefficient_valid"`
}

type EligibilityResponse struct {
	AssemblyID string    `json:"assembly_id"`
	Units      []UnitRef `json:"units"`
}

type VoteHistoryResponse struct {
	Votes   []Vote           `json:"votes"`
	History []VoteAuditEntry `json:"history"`
}

type CreditsResponse struct {
	Balance      int64               `json:"balance"`
	Transactions []CreditTransaction `json:"transactions"`
}

type MinutesResponse struct {
	Assembly  Assembly         `json:"assembly"`
	Snapshots []ResultSnapshot `json:"snapshots"`
}

// Error response

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
	Required  *int64 `json:"required,omitempty"`
	Available *int64 `json:"available,omitempty"`
}
