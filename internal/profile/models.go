// internal/profile/models.go

package profile

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Category values used across profiles. Stored as plain strings; an empty
// string means the user has not answered that question yet.
const (
	SmokerNo           = "no"
	SmokerOccasionally = "occasionally"
	SmokerYes          = "yes"

	DrinkingNo      = "no"
	DrinkingSocial  = "social"
	DrinkingRegular = "regular"

	PetsNo  = "no"
	PetsYes = "yes"

	ScheduleEarlyBird = "early_bird"
	ScheduleRegular   = "regular"
	ScheduleNightOwl  = "night_owl"

	GenderAny = "any"
)

// UserProfile is the roommate-matching view of a user's profile. The engine
// reads it and never writes it; profile-setup flows own the data.
type UserProfile struct {
	ID     int64 `json:"id" db:"id"`
	UserID int64 `json:"user_id" db:"user_id"`

	// Personal information
	DateOfBirth *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Gender      string     `json:"gender" db:"gender"`
	Occupation  *string    `json:"occupation,omitempty" db:"occupation"`

	// Budget and location
	MinBudget          *float64   `json:"min_budget,omitempty" db:"min_budget"`
	MaxBudget          *float64   `json:"max_budget,omitempty" db:"max_budget"`
	PreferredLocations StringList `json:"preferred_locations" db:"preferred_locations"`

	// Lifestyle (1-10 scales)
	CleanlinessLevel *int `json:"cleanliness_level,omitempty" db:"cleanliness_level"`
	NoiseTolerance   *int `json:"noise_tolerance,omitempty" db:"noise_tolerance"`
	SocialLevel      *int `json:"social_level,omitempty" db:"social_level"`

	// Habits
	Smoker   string `json:"smoker" db:"smoker"`
	Drinking string `json:"drinking" db:"drinking"`
	Pets     string `json:"pets" db:"pets"`

	// Schedule
	ScheduleType  string `json:"schedule_type" db:"schedule_type"`
	WorksFromHome bool   `json:"works_from_home" db:"works_from_home"`

	// Roommate preferences
	PreferredAgeMin *int   `json:"preferred_age_min,omitempty" db:"preferred_age_min"`
	PreferredAgeMax *int   `json:"preferred_age_max,omitempty" db:"preferred_age_max"`
	PreferredGender string `json:"preferred_gender" db:"preferred_gender"`
	MaxRoommates    int    `json:"max_roommates" db:"max_roommates"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Age returns the user's age in whole years at the given time, or nil when
// the date of birth is unknown. Calendar-aware: the year difference is
// reduced by one until the birthday has passed.
func (p *UserProfile) Age(now time.Time) *int {
	if p.DateOfBirth == nil {
		return nil
	}
	dob := *p.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return &age
}

// MatchingCriteria holds a user's importance weights and hard constraints.
// It is optional per user; callers that find none should use DefaultCriteria.
type MatchingCriteria struct {
	ID     int64 `json:"id" db:"id"`
	UserID int64 `json:"user_id" db:"user_id"`

	// Importance weights (1-5 scale)
	BudgetImportance    int `json:"budget_importance" db:"budget_importance"`
	LocationImportance  int `json:"location_importance" db:"location_importance"`
	LifestyleImportance int `json:"lifestyle_importance" db:"lifestyle_importance"`
	ScheduleImportance  int `json:"schedule_importance" db:"schedule_importance"`
	HabitsImportance    int `json:"habits_importance" db:"habits_importance"`

	// Hard constraints
	DealBreakers           StringList `json:"deal_breakers" db:"deal_breakers"`
	StrictAgePreference    bool       `json:"strict_age_preference" db:"strict_age_preference"`
	StrictGenderPreference bool       `json:"strict_gender_preference" db:"strict_gender_preference"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultCriteria is the documented default-construction path for users who
// never filled in matching criteria: every dimension matters equally (3 of 5),
// no deal breakers, no strict preferences.
func DefaultCriteria(userID int64) *MatchingCriteria {
	return &MatchingCriteria{
		UserID:              userID,
		BudgetImportance:    3,
		LocationImportance:  3,
		LifestyleImportance: 3,
		ScheduleImportance:  3,
		HabitsImportance:    3,
		DealBreakers:        StringList{},
	}
}

// UserInfo is the slim user projection embedded in API responses
type UserInfo struct {
	ID    int64  `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
}

// StringList stores a JSON string array in a JSONB column
type StringList []string

// Scan implements the sql.Scanner interface for StringList
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	if bytes, ok := value.([]byte); ok {
		return json.Unmarshal(bytes, l)
	}
	return nil
}

// Value implements the driver.Valuer interface for StringList
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(l))
}
