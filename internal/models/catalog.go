package models

import "time"

// Service is a catalog row, referenced by id only once captured into an
// Appointment (§3: "the engine captures duration_min into the
// appointment at creation so catalog edits never retroactively change
// the timeline"). Grounded on the teacher's ServiceDefinition, renamed
// and slimmed to the fields the engine actually needs.
type Service struct {
	ID          string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	DurationMin int    `gorm:"not null" json:"duration_min"`
	PriceCents  int64  `gorm:"not null" json:"price_cents"`
	Active      bool   `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Service) TableName() string { return "services" }

// AddOn mirrors Service for add-on catalog rows.
type AddOn struct {
	ID          string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	DurationMin int    `gorm:"not null" json:"duration_min"`
	PriceCents  int64  `gorm:"not null" json:"price_cents"`
	Active      bool   `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AddOn) TableName() string { return "addons" }

// BarberStatus is the barber's live availability, §3.
type BarberStatus string

const (
	BarberAvailable BarberStatus = "available"
	BarberBusy      BarberStatus = "busy"
	BarberOffline   BarberStatus = "offline"
)

// Barber is a catalog row; the engine only needs ID and Status, rating
// fields are opaque pass-through for presentation.
type Barber struct {
	ID          string       `gorm:"primaryKey;type:varchar(64)" json:"id"`
	DisplayName string       `gorm:"type:varchar(128);not null" json:"display_name"`
	Status      BarberStatus `gorm:"type:varchar(16);not null;default:available" json:"status"`
	AvgRating   float64      `gorm:"default:0" json:"avg_rating"`
	RatingCount int          `gorm:"default:0" json:"rating_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Barber) TableName() string { return "barbers" }

// DayOff is the external, read-only table named in §3: any date within
// [StartDate, EndDate] (inclusive) renders BarberID unbookable.
type DayOff struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	BarberID  string `gorm:"index;type:varchar(64);not null" json:"barber_id"`
	StartDate string `gorm:"type:varchar(10);not null" json:"start_date"`
	EndDate   string `gorm:"type:varchar(10);not null" json:"end_date"`
	Reason    string `gorm:"type:varchar(255)" json:"reason,omitempty"`
}

func (DayOff) TableName() string { return "day_offs" }

// IdempotencyRecord backs the idempotency-key handling in §5
// ("Cancellation and timeouts"): a repeat book() call with a known key
// short-circuits to the stored response instead of creating a second
// row. Grounded on the upsert idiom in the teacher's
// internal/subscribers/event_handlers.go (clause.OnConflict).
type IdempotencyRecord struct {
	Key           string `gorm:"primaryKey;type:varchar(128)"`
	BarberID      string `gorm:"type:varchar(64);not null"`
	ServiceDate   string `gorm:"type:varchar(10);not null"`
	AppointmentID string `gorm:"type:uuid;not null"`
	ResponseJSON  string `gorm:"type:text;not null"`

	CreatedAt time.Time `json:"created_at"`
}

func (IdempotencyRecord) TableName() string { return "idempotency_records" }
