// Package mentors implements the client for the mentoring backend REST API
// (orders, students, notes and weekly plans).
package mentors

// ══════════════════════════════════════════════════════════════════════════════
// ORDER DTOs
// ══════════════════════════════════════════════════════════════════════════════

// OrderDTO is an order as returned by `orders/{id}/` and the mentor listing.
type OrderDTO struct {
	UUID     string `json:"uuid"`
	IsActive bool   `json:"is_active"`

	// WeeklyPlan is null when no plan is attached.
	WeeklyPlan *PlanRefDTO `json:"weekly_plan"`

	Student *StudentDTO `json:"student"`
}

// PlanRefDTO is the weekly plan reference embedded in an order.
type PlanRefDTO struct {
	UUID string `json:"uuid"`
}

// OrderPageDTO is one page of `mentors/{id}/orders/`.
type OrderPageDTO struct {
	Count   int        `json:"count"`
	Next    *string    `json:"next"`
	Results []OrderDTO `json:"results"`
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT DTOs
// ══════════════════════════════════════════════════════════════════════════════

// StudentDTO is the student embedded in an order.
type StudentDTO struct {
	UUID    string      `json:"uuid"`
	Profile *ProfileDTO `json:"profile"`
	Notes   []NoteDTO   `json:"notes"`
}

// ProfileDTO carries the student's external handles.
type ProfileDTO struct {
	TelegramUsername string `json:"telegram_username"`
	DvmnUsername     string `json:"username_to_dvmn_org"`
}

// NoteDTO is a mentor note on a student.
type NoteDTO struct {
	UUID     string `json:"uuid"`
	Content  string `json:"content"`
	IsHidden bool   `json:"is_hidden"`
}

// NotePatchDTO is the body of `PATCH notes/{id}/`.
type NotePatchDTO struct {
	IsHidden bool `json:"is_hidden"`
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY PLAN DTOs
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyPlanDTO is a weekly plan as returned by `weekly-plans/{id}/`.
type WeeklyPlanDTO struct {
	UUID             string `json:"uuid"`
	GistURL          string `json:"gist_url"`
	StatusFromMentor string `json:"status_from_mentor,omitempty"`
}
