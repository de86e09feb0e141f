package models

import (
	"time"
)

// CallType classifies a funding call.
type CallType string

const (
	TypeGrant       CallType = "grant"
	TypeScholarship CallType = "scholarship"
	TypeResource    CallType = "resource"
)

// CallTypes lists every accepted type, in display order.
var CallTypes = []CallType{TypeGrant, TypeScholarship, TypeResource}

func (t CallType) Valid() bool {
	switch t {
	case TypeGrant, TypeScholarship, TypeResource:
		return true
	}
	return false
}

// Status is the lifecycle stage of a funding call. It is always derived from
// the deadline and never accepted from callers.
type Status string

const (
	StatusOpen        Status = "open"
	StatusClosingSoon Status = "closing_soon"
	StatusClosed      Status = "closed"
)

var Statuses = []Status{StatusOpen, StatusClosingSoon, StatusClosed}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClosingSoon, StatusClosed:
		return true
	}
	return false
}

type FundingInfo struct {
	Amount      string `json:"amount,omitempty" bson:"amount,omitempty" yaml:"amount,omitempty"`
	Currency    string `json:"currency,omitempty" bson:"currency,omitempty" yaml:"currency,omitempty"`
	Type        string `json:"type,omitempty" bson:"type,omitempty" yaml:"type,omitempty"`
	Duration    string `json:"duration,omitempty" bson:"duration,omitempty" yaml:"duration,omitempty"`
	BudgetLimit string `json:"budget_limit,omitempty" bson:"budget_limit,omitempty" yaml:"budget_limit,omitempty"`
}

type Eligibility struct {
	Criteria     []string `json:"criteria" bson:"criteria" yaml:"criteria"`
	Restrictions []string `json:"restrictions,omitempty" bson:"restrictions,omitempty" yaml:"restrictions,omitempty"`
}

// FundingCall is a grant, scholarship or resource listing.
type FundingCall struct {
	ID              string      `json:"id" bson:"id"`
	Title           string      `json:"title" bson:"title"`
	Organization    string      `json:"organization" bson:"organization"`
	Description     string      `json:"description" bson:"description"`
	Summary         string      `json:"summary" bson:"summary"` // plain-text excerpt of Description
	// DescriptionText is the full plain text of Description, kept for search.
	DescriptionText string      `json:"-" bson:"description_text"`
	Type            CallType    `json:"type" bson:"type"`
	Deadline        time.Time   `json:"deadline" bson:"deadline"`
	Status          Status      `json:"status" bson:"status"`
	FundingInfo     FundingInfo `json:"fundingInfo" bson:"funding_info"`
	Eligibility     Eligibility `json:"eligibility" bson:"eligibility"`
	Requirements    []string    `json:"requirements" bson:"requirements"`
	Tags            []string    `json:"tags" bson:"tags"`
	Featured        bool        `json:"featured" bson:"featured"`
	ApplicationURL  string      `json:"applicationUrl" bson:"application_url"`
	PublishedAt     time.Time   `json:"publishedAt" bson:"published_at"`
	CreatedAt       time.Time   `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time   `json:"updatedAt" bson:"updated_at"`
	Version         int         `json:"version" bson:"version"`
}

// CreateInput is the admin payload for a new funding call. Any "status" key in
// the request body is ignored.
type CreateInput struct {
	Title          string      `json:"title" yaml:"title"`
	Organization   string      `json:"organization" yaml:"organization"`
	Description    string      `json:"description" yaml:"description"`
	Type           CallType    `json:"type" yaml:"type"`
	Deadline       time.Time   `json:"deadline" yaml:"deadline"`
	FundingInfo    FundingInfo `json:"fundingInfo" yaml:"fundingInfo"`
	Eligibility    Eligibility `json:"eligibility" yaml:"eligibility"`
	Requirements   []string    `json:"requirements" yaml:"requirements"`
	Tags           []string    `json:"tags" yaml:"tags"`
	Featured       bool        `json:"featured" yaml:"featured"`
	ApplicationURL string      `json:"applicationUrl" yaml:"applicationUrl"`
}

// UpdateInput is a partial update: nil fields keep the stored value.
// FundingInfo and Eligibility replace the whole sub-record when present.
// Version, when set, must match the stored version.
type UpdateInput struct {
	Title          *string      `json:"title,omitempty"`
	Organization   *string      `json:"organization,omitempty"`
	Description    *string      `json:"description,omitempty"`
	Type           *CallType    `json:"type,omitempty"`
	Deadline       *time.Time   `json:"deadline,omitempty"`
	FundingInfo    *FundingInfo `json:"fundingInfo,omitempty"`
	Eligibility    *Eligibility `json:"eligibility,omitempty"`
	Requirements   *[]string    `json:"requirements,omitempty"`
	Tags           *[]string    `json:"tags,omitempty"`
	Featured       *bool        `json:"featured,omitempty"`
	ApplicationURL *string      `json:"applicationUrl,omitempty"`
	Version        *int         `json:"version,omitempty"`
}
