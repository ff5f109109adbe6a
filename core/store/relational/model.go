package relational

import "time"

// Row is the table layout created by Migrate. Lists are stored as JSON text.
type Row struct {
	UserID                         string     `gorm:"column:user_id;size:191;uniqueIndex;not null"`
	Name                           string     `gorm:"column:name"`
	Age                            int        `gorm:"column:age"`
	Email                          string     `gorm:"column:email"`
	Phone                          string     `gorm:"column:phone"`
	PhoneVerified                  bool       `gorm:"column:phone_verified"`
	EmailVerified                  bool       `gorm:"column:email_verified"`
	City                           string     `gorm:"column:city"`
	State                          string     `gorm:"column:state"`
	Bio                            string     `gorm:"column:bio"`
	Avatar                         string     `gorm:"column:avatar"`
	MoveInDate                     *time.Time `gorm:"column:move_in_date"`
	BudgetMin                      int        `gorm:"column:budget_min"`
	BudgetMax                      int        `gorm:"column:budget_max"`
	RoommatePrefGender             string     `gorm:"column:roommate_pref_gender"`
	Verified                       bool       `gorm:"column:verified"`
	StripeConnectID                string     `gorm:"column:stripe_connect_id"`
	BackgroundCheckStatus          string     `gorm:"column:background_check_status"`
	BackgroundCheckDate            *time.Time `gorm:"column:background_check_date"`
	TrustScore                     int        `gorm:"column:trust_score"`
	IdentityVerifiedAt             *time.Time `gorm:"column:identity_verified_at"`
	IdentityDocumentSelfieVerified bool       `gorm:"column:identity_document_selfie_verified"`
	Cleanliness                    int        `gorm:"column:cleanliness"`
	SleepSchedule                  string     `gorm:"column:sleep_schedule"`
	SocialFrequency                int        `gorm:"column:social_frequency"`
	NoiseTolerance                 int        `gorm:"column:noise_tolerance"`
	FinancialReliability           int        `gorm:"column:financial_reliability"`
	HasPets                        bool       `gorm:"column:has_pets"`
	PetTolerance                   int        `gorm:"column:pet_tolerance"`
	GuestPolicy                    int        `gorm:"column:guest_policy"`
	PrivacyNeed                    int        `gorm:"column:privacy_need"`
	KitchenHabits                  int        `gorm:"column:kitchen_habits"`
	IsActive                       bool       `gorm:"column:is_active;index"`
	IsSuspended                    bool       `gorm:"column:is_suspended"`
	SuspensionReason               string     `gorm:"column:suspension_reason"`
	LastActiveAt                   *time.Time `gorm:"column:last_active_at"`
	Neighborhoods                  string     `gorm:"column:neighborhoods;type:text"`
	TrustBadgeIDs                  string     `gorm:"column:trust_badge_ids;type:text"`
	CreatedAt                      time.Time  `gorm:"column:created_at"`
	UpdatedAt                      time.Time  `gorm:"column:updated_at"`
}
