package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppointmentKind distinguishes a time-bound scheduled appointment from
// a timeless, position-ordered queue appointment. See spec §3 invariant
// I1: exactly one of StartMinute/QueuePosition is set, matching the kind.
type AppointmentKind string

const (
	KindScheduled AppointmentKind = "scheduled"
	KindQueue     AppointmentKind = "queue"
)

// Priority orders queue appointments ahead of capacity/gap placement.
// Lower PriorityRank sorts first; urgent preempts everything else.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// PriorityRank returns the sort key used by the Timeline Builder
// (§4.3 step 1: "priority_rank asc") and by change_priority's stable
// re-sort (§4.6).
func (p Priority) PriorityRank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// Status is the appointment lifecycle state, §4.6.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusOngoing   Status = "ongoing"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// ActiveStatuses are the statuses counted toward timeline construction
// and queue contiguity (§3 "Active status" in the glossary).
var ActiveStatuses = []Status{StatusPending, StatusConfirmed, StatusOngoing}

// IsActive reports whether s is one of the active statuses.
func (s Status) IsActive() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// Appointment is the central row of §3. StartMinute is expressed in
// minutes-since-midnight (TimeMath's representation) to avoid reparsing
// HH:MM:SS on every read. It is stored as that integer (a smallint
// column); the repository does not convert it to an HH:MM:SS string.
type Appointment struct {
	ID         string `gorm:"type:uuid;primaryKey" json:"id"`
	BarberID   string `gorm:"index:idx_appt_barber_date,priority:1;type:varchar(64);not null" json:"barber_id"`
	CustomerID *string `gorm:"type:varchar(64)" json:"customer_id,omitempty"`

	ServiceDate string          `gorm:"index:idx_appt_barber_date,priority:2;type:varchar(10);not null" json:"service_date"`
	Kind        AppointmentKind `gorm:"type:varchar(16);not null" json:"appointment_kind"`

	// StartMinute is null (-1 sentinel is avoided; use pointer) iff Kind == queue.
	StartMinute   *int `gorm:"type:smallint" json:"-"`
	QueuePosition *int `gorm:"type:smallint" json:"queue_position,omitempty"`

	Priority Priority `gorm:"type:varchar(16);not null;default:normal" json:"priority"`
	Status   Status   `gorm:"type:varchar(16);not null;default:pending" json:"status"`

	TotalDurationMin int        `gorm:"not null" json:"total_duration_min"`
	ServiceIDs       StringList `gorm:"type:text" json:"service_ids"`
	AddOnIDs         StringList `gorm:"type:text" json:"addon_ids"`
	TotalPriceCents  int64      `gorm:"not null;default:0" json:"total_price_cents"`
	Notes            string     `gorm:"type:text" json:"notes,omitempty"`

	// Friend-booking sub-record, §3.
	FriendName         *string `gorm:"type:varchar(128)" json:"friend_name,omitempty"`
	FriendPhone        *string `gorm:"type:varchar(32)" json:"friend_phone,omitempty"`
	FriendEmail        *string `gorm:"type:varchar(128)" json:"friend_email,omitempty"`
	PrimaryCustomerID  *string `gorm:"type:varchar(64)" json:"primary_customer_id,omitempty"`

	IdempotencyKey *string `gorm:"type:varchar(128);uniqueIndex" json:"-"`

	Version int `gorm:"not null;default:1" json:"version"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Appointment) TableName() string { return "appointments" }

// BeforeCreate assigns a UUID, following the teacher's
// internal/models/booking.go BeforeCreate hook.
func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	return nil
}

// StartTimeMinute returns the scheduled start and true, or (0, false)
// for a queue appointment.
func (a *Appointment) StartTimeMinute() (int, bool) {
	if a.StartMinute == nil {
		return 0, false
	}
	return *a.StartMinute, true
}

// EndMinute is only meaningful for scheduled appointments.
func (a *Appointment) EndMinute() int {
	start, _ := a.StartTimeMinute()
	return start + a.TotalDurationMin
}
