package profile

import (
	"encoding/json"
	"strings"
	"time"

	"profile-store/core/utils"
)

// KeyUserID is the canonical identity key.
const KeyUserID = "user_id"

// Field binds one canonical key to the Profile attribute it populates.
type Field struct {
	Key string
	ref func(p *Profile) any
}

// Fields is the fixed mapping between Profile attributes and canonical keys.
var Fields = []Field{
	{"user_id", func(p *Profile) any { return &p.UserID }},
	{"name", func(p *Profile) any { return &p.Name }},
	{"age", func(p *Profile) any { return &p.Age }},
	{"email", func(p *Profile) any { return &p.Email }},
	{"phone", func(p *Profile) any { return &p.Phone }},
	{"phone_verified", func(p *Profile) any { return &p.PhoneVerified }},
	{"email_verified", func(p *Profile) any { return &p.EmailVerified }},
	{"city", func(p *Profile) any { return &p.City }},
	{"state", func(p *Profile) any { return &p.State }},
	{"bio", func(p *Profile) any { return &p.Bio }},
	{"avatar", func(p *Profile) any { return &p.Avatar }},
	{"move_in_date", func(p *Profile) any { return &p.MoveInDate }},
	{"budget_min", func(p *Profile) any { return &p.BudgetMin }},
	{"budget_max", func(p *Profile) any { return &p.BudgetMax }},
	{"roommate_pref_gender", func(p *Profile) any { return &p.RoommatePrefGender }},
	{"verified", func(p *Profile) any { return &p.Verified }},
	{"stripe_connect_id", func(p *Profile) any { return &p.StripeConnectID }},
	{"background_check_status", func(p *Profile) any { return &p.BackgroundCheckStatus }},
	{"background_check_date", func(p *Profile) any { return &p.BackgroundCheckDate }},
	{"trust_score", func(p *Profile) any { return &p.TrustScore }},
	{"identity_verified_at", func(p *Profile) any { return &p.IdentityVerifiedAt }},
	{"identity_document_selfie_verified", func(p *Profile) any { return &p.IdentityDocumentSelfieVerified }},
	{"cleanliness", func(p *Profile) any { return &p.Cleanliness }},
	{"sleep_schedule", func(p *Profile) any { return &p.SleepSchedule }},
	{"social_frequency", func(p *Profile) any { return &p.SocialFrequency }},
	{"noise_tolerance", func(p *Profile) any { return &p.NoiseTolerance }},
	{"financial_reliability", func(p *Profile) any { return &p.FinancialReliability }},
	{"has_pets", func(p *Profile) any { return &p.HasPets }},
	{"pet_tolerance", func(p *Profile) any { return &p.PetTolerance }},
	{"guest_policy", func(p *Profile) any { return &p.GuestPolicy }},
	{"privacy_need", func(p *Profile) any { return &p.PrivacyNeed }},
	{"kitchen_habits", func(p *Profile) any { return &p.KitchenHabits }},
	{"is_active", func(p *Profile) any { return &p.IsActive }},
	{"is_suspended", func(p *Profile) any { return &p.IsSuspended }},
	{"suspension_reason", func(p *Profile) any { return &p.SuspensionReason }},
	{"last_active_at", func(p *Profile) any { return &p.LastActiveAt }},
	{"neighborhoods", func(p *Profile) any { return &p.Neighborhoods }},
	{"trust_badge_ids", func(p *Profile) any { return &p.TrustBadgeIDs }},
	{"created_at", func(p *Profile) any { return &p.CreatedAt }},
	{"updated_at", func(p *Profile) any { return &p.UpdatedAt }},
}

var fieldIndex = func() map[string]Field {
	idx := make(map[string]Field, len(Fields))
	for _, f := range Fields {
		idx[f.Key] = f
	}
	return idx
}()

// IsKnown reports whether key is part of the field table.
func IsKnown(key string) bool {
	_, ok := fieldIndex[key]
	return ok
}

// Keys returns the canonical keys in table order.
func Keys() []string {
	keys := make([]string, len(Fields))
	for i, f := range Fields {
		keys[i] = f.Key
	}
	return keys
}

// Normalize renames every key to snake_case and folds any spelling of the
// identity key into user_id. It never fails: unknown keys pass through
// renamed and values are left untouched.
func Normalize(in Record) Record {
	out := make(Record, len(in))
	for k, v := range in {
		nk := SnakeCase(k)
		if isIdentityKey(nk) {
			nk = KeyUserID
		}
		out[nk] = v
	}
	return out
}

// SnakeCase inserts an underscore before every upper-case letter and
// lower-cases the result ("budgetMin" -> "budget_min").
func SnakeCase(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isIdentityKey(snake string) bool {
	if snake == "_id" {
		return true
	}
	return strings.ReplaceAll(snake, "_", "") == "userid"
}

// FromRecord decodes a canonical record into a Profile. Values are coerced
// with the loose converters in core/utils so records coming back from any
// store decode the same way. Unknown keys land in Extra.
func FromRecord(rec Record) Profile {
	var p Profile
	for k, v := range rec {
		f, ok := fieldIndex[k]
		if !ok {
			if p.Extra == nil {
				p.Extra = make(map[string]any)
			}
			p.Extra[k] = v
			continue
		}
		assign(f.ref(&p), v)
	}
	return p
}

func assign(dst any, v any) {
	switch d := dst.(type) {
	case *string:
		*d = utils.ToString(v)
	case *int:
		*d = utils.ToInt(v)
	case *bool:
		*d = utils.ToBool(v)
	case *time.Time:
		*d = utils.ToTime(v)
	case *[]string:
		*d = toStrings(v)
	}
}

func toStrings(v any) []string {
	switch s := v.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), s...)
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			out = append(out, utils.ToString(item))
		}
		return out
	case []byte:
		return toStrings(string(s))
	case string:
		if s == "" {
			return nil
		}
		var out []string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return out
		}
		// Postgres array literal: {a,b}
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			inner := strings.TrimSpace(s[1 : len(s)-1])
			if inner == "" {
				return nil
			}
			parts := strings.Split(inner, ",")
			for i := range parts {
				parts[i] = strings.Trim(strings.TrimSpace(parts[i]), `"`)
			}
			return parts
		}
		return []string{s}
	default:
		return nil
	}
}

// Record encodes the profile as a canonical record. Zero timestamps are
// omitted. Extra keys are included unless they collide with a table key.
func (p Profile) Record() Record {
	rec := make(Record, len(Fields)+len(p.Extra))
	for k, v := range p.Extra {
		rec[k] = v
	}
	for _, f := range Fields {
		switch v := f.ref(&p).(type) {
		case *string:
			rec[f.Key] = *v
		case *int:
			rec[f.Key] = *v
		case *bool:
			rec[f.Key] = *v
		case *time.Time:
			if !v.IsZero() {
				rec[f.Key] = v.UTC()
			}
		case *[]string:
			if *v != nil {
				rec[f.Key] = append([]string(nil), (*v)...)
			}
		}
	}
	return rec
}

// Merge applies a patch on top of base and returns the merged profile.
// The patch is normalized first and the identity of base is preserved.
func Merge(base Profile, patch Record) Profile {
	rec := base.Record()
	for k, v := range Normalize(patch) {
		rec[k] = v
	}
	rec[KeyUserID] = base.UserID
	return FromRecord(rec)
}
