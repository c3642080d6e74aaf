package accounts

import (
	"strings"
	"time"
)

type Role string

const (
	RoleFarmer Role = "farmer"
	RoleExpert Role = "expert"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleExpert, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	Role         Role       `json:"role"`
	PhoneNumber  string     `json:"phone_number"`
	IsActive     bool       `json:"is_active"`
	IsApproved   bool       `json:"is_approved"`
	Points       int        `json:"points"`
	DateJoined   time.Time  `json:"date_joined"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

type CropType string

const (
	CropMaize    CropType = "MAIZE"
	CropWheat    CropType = "WHEAT"
	CropRice     CropType = "RICE"
	CropBeans    CropType = "BEANS"
	CropPotatoes CropType = "POTATOES"
)

var cropTypes = []CropType{CropMaize, CropWheat, CropRice, CropBeans, CropPotatoes}

// CropTypes lists the supported crops in display order.
func CropTypes() []CropType {
	out := make([]CropType, len(cropTypes))
	copy(out, cropTypes)
	return out
}

func (c CropType) Valid() bool {
	for _, v := range cropTypes {
		if v == c {
			return true
		}
	}
	return false
}

// Label is the human readable crop name ("Maize").
func (c CropType) Label() string {
	s := strings.ToLower(string(c))
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type DiseaseType string

const (
	DiseaseCommonRust   DiseaseType = "common_rust"
	DiseaseLeafBlast    DiseaseType = "leaf_blast"
	DiseaseGrayLeafSpot DiseaseType = "gray_leaf_spot"
	DiseaseNone         DiseaseType = "none"
)

func (d DiseaseType) Valid() bool {
	switch d {
	case DiseaseCommonRust, DiseaseLeafBlast, DiseaseGrayLeafSpot, DiseaseNone:
		return true
	}
	return false
}

type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "low"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyHigh   UrgencyLevel = "high"
)

func (u UrgencyLevel) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

type FarmerProfile struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	FarmLocation      string     `json:"farm_location"`
	FarmSize          float64    `json:"farm_size"`
	CropTypes         []CropType `json:"crop_types"`
	SoilType          string     `json:"soil_type"`
	IrrigationMethod  string     `json:"irrigation_method"`
	DiseaseHistory    string     `json:"disease_history"`
	FarmLatitude      *float64   `json:"farm_latitude"`
	FarmLongitude     *float64   `json:"farm_longitude"`
	ExperienceYears   int        `json:"experience_years"`
	PreferredLanguage string     `json:"preferred_language"`
	FarmEquipment     string     `json:"farm_equipment"`
}

type ExpertProfile struct {
	ID                      string `json:"id"`
	UserID                  string `json:"user_id"`
	AreasOfExpertise        string `json:"areas_of_expertise"`
	Certifications          string `json:"certifications"`
	Bio                     string `json:"bio"`
	ExperienceYears         int    `json:"experience_years"`
	Institution             string `json:"institution"`
	LanguagesSpoken         string `json:"languages_spoken"`
	SocialLinks             string `json:"social_links"`
	ValidatedResponsesCount int    `json:"validated_responses_count"`
}

type AvailabilitySlot struct {
	ID        string    `json:"id"`
	ExpertID  string    `json:"expert_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	IsBooked  bool      `json:"is_booked"`
	IsActive  bool      `json:"is_active"`
}

// Expired reports whether the slot has already ended at now.
func (s AvailabilitySlot) Expired(now time.Time) bool {
	return !s.EndTime.After(now)
}

// Overlaps reports whether [start, end) intersects the slot.
func (s AvailabilitySlot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && s.EndTime.After(start)
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

type ConsultationBooking struct {
	ID               string        `json:"id"`
	FarmerID         string        `json:"farmer_id"`
	SlotID           string        `json:"slot_id"`
	Status           BookingStatus `json:"status"`
	SelectedDate     *time.Time    `json:"selected_date"`
	CreatedAt        time.Time     `json:"created_at"`
	NotificationSent bool          `json:"notification_sent"`
}

type CommunityPost struct {
	ID           string       `json:"id"`
	FarmerID     string       `json:"farmer_id"`
	Title        string       `json:"title"`
	Content      string       `json:"content"`
	DiseaseType  DiseaseType  `json:"disease_type"`
	CropType     CropType     `json:"crop_type"`
	UrgencyLevel UrgencyLevel `json:"urgency_level"`
	CreatedAt    time.Time    `json:"created_at"`
	IsApproved   bool         `json:"is_approved"`
	IsFlagged    bool         `json:"is_flagged"`
}

type CommunityResponse struct {
	ID            string    `json:"id"`
	PostID        string    `json:"post_id"`
	AuthorID      string    `json:"author_id"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
	IsApproved    bool      `json:"is_approved"`
	ExpertComment string    `json:"expert_comment"`
	ApprovedBy    string    `json:"approved_by,omitempty"`
}

type PointTransaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Points awarded for community activity.
const (
	PointsForPost     = 5
	PointsForResponse = 3
)

type Feedback struct {
	ID        string    `json:"id"`
	FarmerID  string    `json:"farmer_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type SystemMetric struct {
	ID         string    `json:"id"`
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

type PasswordResetToken struct {
	Token     string     `json:"token"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// Valid reports whether the token is unused and not expired at now.
func (t PasswordResetToken) Valid(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// Settings are the runtime switches an admin can change without a restart.
type Settings struct {
	UpdatedAt              time.Time `json:"updated_at"`
	FarmerRegistrationOpen bool      `json:"farmer_registration_open"`
	ExpertRegistrationOpen bool      `json:"expert_registration_open"`
	ExpertAutoApprove      bool      `json:"expert_auto_approve"`
	// Notice is markdown rendered on the API docs page.
	Notice string `json:"notice,omitempty"`
}

func DefaultSettings(expertAutoApprove bool) Settings {
	return Settings{
		FarmerRegistrationOpen: true,
		ExpertRegistrationOpen: true,
		ExpertAutoApprove:      expertAutoApprove,
	}
}
