package profile

import (
	"time"
)

// Record is a loosely typed profile payload keyed by field name.
type Record map[string]any

// Profile is the canonical user profile replicated across all stores.
type Profile struct {
	UserID string `json:"user_id"`

	Name   string `json:"name"`
	Age    int    `json:"age"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	City   string `json:"city"`
	State  string `json:"state"`
	Bio    string `json:"bio"`
	Avatar string `json:"avatar"`

	PhoneVerified bool `json:"phone_verified"`
	EmailVerified bool `json:"email_verified"`
	Verified      bool `json:"verified"`

	MoveInDate         time.Time `json:"move_in_date"`
	BudgetMin          int       `json:"budget_min"`
	BudgetMax          int       `json:"budget_max"`
	RoommatePrefGender string    `json:"roommate_pref_gender"`

	StripeConnectID                string    `json:"stripe_connect_id"`
	BackgroundCheckStatus          string    `json:"background_check_status"`
	BackgroundCheckDate            time.Time `json:"background_check_date"`
	TrustScore                     int       `json:"trust_score"`
	IdentityVerifiedAt             time.Time `json:"identity_verified_at"`
	IdentityDocumentSelfieVerified bool      `json:"identity_document_selfie_verified"`

	// Preference dimensions, each in the 1-10 range.
	Cleanliness          int    `json:"cleanliness"`
	SleepSchedule        string `json:"sleep_schedule"`
	SocialFrequency      int    `json:"social_frequency"`
	NoiseTolerance       int    `json:"noise_tolerance"`
	FinancialReliability int    `json:"financial_reliability"`
	HasPets              bool   `json:"has_pets"`
	PetTolerance         int    `json:"pet_tolerance"`
	GuestPolicy          int    `json:"guest_policy"`
	PrivacyNeed          int    `json:"privacy_need"`
	KitchenHabits        int    `json:"kitchen_habits"`

	IsActive         bool      `json:"is_active"`
	IsSuspended      bool      `json:"is_suspended"`
	SuspensionReason string    `json:"suspension_reason"`
	LastActiveAt     time.Time `json:"last_active_at"`

	Neighborhoods []string `json:"neighborhoods"`
	TrustBadgeIDs []string `json:"trust_badge_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Extra holds attributes outside the field table.
	Extra map[string]any `json:"-"`
}

// Default values applied to profiles created without them.
const (
	DefaultPreference    = 5
	DefaultTrustScore    = 50
	DefaultSleepSchedule = "normal"
)

// WithDefaults fills the preference dimensions, trust score, sleep schedule
// and timestamps of a brand new profile. Fields that already hold a value
// are left alone. New profiles start active.
func WithDefaults(p Profile, now time.Time) Profile {
	for _, dim := range []*int{
		&p.Cleanliness, &p.SocialFrequency, &p.NoiseTolerance, &p.FinancialReliability,
		&p.PetTolerance, &p.GuestPolicy, &p.PrivacyNeed, &p.KitchenHabits,
	} {
		if *dim == 0 {
			*dim = DefaultPreference
		}
	}
	if p.TrustScore == 0 {
		p.TrustScore = DefaultTrustScore
	}
	if p.SleepSchedule == "" {
		p.SleepSchedule = DefaultSleepSchedule
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now.UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now.UTC()
	}
	p.IsActive = true
	return p
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	out := p
	if p.Neighborhoods != nil {
		out.Neighborhoods = append([]string(nil), p.Neighborhoods...)
	}
	if p.TrustBadgeIDs != nil {
		out.TrustBadgeIDs = append([]string(nil), p.TrustBadgeIDs...)
	}
	if p.Extra != nil {
		out.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
