package model

import "time"

type TriggerType string

const (
	TriggerReservationCreated TriggerType = "reservation_created"
	TriggerCheckIn            TriggerType = "check_in"
	TriggerCheckOut           TriggerType = "check_out"
)

type TimeType string

const (
	TimeRelative TimeType = "relative"
	TimeAbsolute TimeType = "absolute"
)

type OffsetUnit string

const (
	UnitMinutes OffsetUnit = "minutes"
	UnitHours   OffsetUnit = "hours"
	UnitDays    OffsetUnit = "days"
)

type Direction string

const (
	Before Direction = "before"
	After  Direction = "after"
)

type Anchor string

const (
	AnchorStart Anchor = "start"
	AnchorEnd   Anchor = "end"
)

// Rule maps a reservation lifecycle trigger plus a timing configuration to
// a message template. SpaceID nil means the rule applies to every space the
// owner operates.
type Rule struct {
	ID         int64  `json:"id"`
	OwnerID    int64  `json:"owner_id"`
	Name       string `json:"name"`
	SpaceID    *int64 `json:"space_id,omitempty"`
	TemplateID int64  `json:"template_id"`

	TriggerType TriggerType `json:"trigger_type"`
	TimeType    TimeType    `json:"time_type"`

	// Relative timing: OffsetValue in OffsetUnit, Before or After Anchor.
	OffsetValue int        `json:"offset_value,omitempty"`
	OffsetUnit  OffsetUnit `json:"offset_unit,omitempty"`
	Direction   Direction  `json:"direction,omitempty"`
	Anchor      Anchor     `json:"anchor"`

	// Absolute timing: wall-clock "HH:MM" applied to the anchor's date.
	AbsoluteTime string `json:"absolute_time,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MatchesSpace reports whether the rule applies to the given space.
func (r *Rule) MatchesSpace(spaceID int64) bool {
	return r.SpaceID == nil || *r.SpaceID == spaceID
}

// OffsetDuration converts the relative offset into a time.Duration.
func (r *Rule) OffsetDuration() time.Duration {
	d := time.Duration(r.OffsetValue)
	switch r.OffsetUnit {
	case UnitHours:
		return d * time.Hour
	case UnitDays:
		return d * 24 * time.Hour
	default:
		return d * time.Minute
	}
}
