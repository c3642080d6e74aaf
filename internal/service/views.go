package service

import (
	"time"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/store"
)

// UserView is the public representation of a user. The password hash never
// leaves the service.
type UserView struct {
	ID          string        `json:"id"`
	Email       string        `json:"email"`
	Username    string        `json:"username"`
	Role        accounts.Role `json:"role"`
	PhoneNumber string        `json:"phone_number"`
	IsActive    bool          `json:"is_active"`
	IsApproved  bool          `json:"is_approved"`
	Points      int           `json:"points"`
	DateJoined  time.Time     `json:"date_joined"`
	LastLogin   *time.Time    `json:"last_login"`
}

func NewUserView(u *accounts.User) UserView {
	return UserView{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		Role:        u.Role,
		PhoneNumber: u.PhoneNumber,
		IsActive:    u.IsActive,
		IsApproved:  u.IsApproved,
		Points:      u.Points,
		DateJoined:  u.DateJoined,
		LastLogin:   u.LastLogin,
	}
}

type FarmerProfileView struct {
	ID                string              `json:"id"`
	User              *UserView           `json:"user"`
	FarmLocation      string              `json:"farm_location"`
	FarmSize          float64             `json:"farm_size"`
	CropTypes         []accounts.CropType `json:"crop_types"`
	SoilType          string              `json:"soil_type"`
	IrrigationMethod  string              `json:"irrigation_method"`
	DiseaseHistory    string              `json:"disease_history"`
	FarmLatitude      *float64            `json:"farm_latitude"`
	FarmLongitude     *float64            `json:"farm_longitude"`
	ExperienceYears   int                 `json:"experience_years"`
	PreferredLanguage string              `json:"preferred_language"`
	FarmEquipment     string              `json:"farm_equipment"`
}

type ExpertProfileView struct {
	ID                      string    `json:"id"`
	User                    *UserView `json:"user"`
	AreasOfExpertise        string    `json:"areas_of_expertise"`
	Certifications          string    `json:"certifications"`
	Bio                     string    `json:"bio"`
	ExperienceYears         int       `json:"experience_years"`
	Institution             string    `json:"institution"`
	LanguagesSpoken         string    `json:"languages_spoken"`
	SocialLinks             string    `json:"social_links"`
	ValidatedResponsesCount int       `json:"validated_responses_count"`
}

type SlotView struct {
	ID        string             `json:"id"`
	Expert    *ExpertProfileView `json:"expert"`
	StartTime time.Time          `json:"start_time"`
	EndTime   time.Time          `json:"end_time"`
	IsBooked  bool               `json:"is_booked"`
	IsActive  bool               `json:"is_active"`
}

type BookingView struct {
	ID               string                 `json:"id"`
	Farmer           *UserView              `json:"farmer"`
	Slot             *SlotView              `json:"slot"`
	Status           accounts.BookingStatus `json:"status"`
	SelectedDate     *time.Time             `json:"selected_date"`
	CreatedAt        time.Time              `json:"created_at"`
	NotificationSent bool                   `json:"notification_sent"`
}

type ResponseView struct {
	ID            string    `json:"id"`
	PostID        string    `json:"post"`
	Farmer        *UserView `json:"farmer"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
	IsApproved    bool      `json:"is_approved"`
	ExpertComment *string   `json:"expert_comment"`
	ApprovedBy    *UserView `json:"approved_by"`
}

type ExpertComment struct {
	ID        string    `json:"id"`
	Expert    *UserView `json:"expert"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type PostView struct {
	ID             string                `json:"id"`
	Farmer         *UserView             `json:"farmer"`
	Title          string                `json:"title"`
	Content        string                `json:"content"`
	DiseaseType    accounts.DiseaseType  `json:"disease_type"`
	CropType       accounts.CropType     `json:"crop_type"`
	UrgencyLevel   accounts.UrgencyLevel `json:"urgency_level"`
	CreatedAt      time.Time             `json:"created_at"`
	IsApproved     bool                  `json:"is_approved"`
	IsFlagged      bool                  `json:"is_flagged"`
	FarmerComments []ResponseView        `json:"farmer_comments"`
	ExpertComments []ExpertComment       `json:"expert_comments"`
}

type PointView struct {
	ID        string    `json:"id"`
	User      *UserView `json:"user"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type FeedbackView struct {
	ID        string    `json:"id"`
	Farmer    *UserView `json:"farmer"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// viewer builds views inside one read transaction, caching lookups.
type viewer struct {
	tx      store.Tx
	users   map[string]*accounts.User
	experts map[string]*accounts.ExpertProfile
}

func newViewer(tx store.Tx) *viewer {
	return &viewer{
		tx:      tx,
		users:   map[string]*accounts.User{},
		experts: map[string]*accounts.ExpertProfile{},
	}
}

func (v *viewer) user(id string) *UserView {
	if id == "" {
		return nil
	}
	u, ok := v.users[id]
	if !ok {
		u, _ = store.Users(v.tx).Get(id)
		v.users[id] = u
	}
	if u == nil {
		return nil
	}
	uv := NewUserView(u)
	return &uv
}

func (v *viewer) farmerProfile(p *accounts.FarmerProfile) FarmerProfileView {
	crops := p.CropTypes
	if crops == nil {
		crops = []accounts.CropType{}
	}
	return FarmerProfileView{
		ID:                p.ID,
		User:              v.user(p.UserID),
		FarmLocation:      p.FarmLocation,
		FarmSize:          p.FarmSize,
		CropTypes:         crops,
		SoilType:          p.SoilType,
		IrrigationMethod:  p.IrrigationMethod,
		DiseaseHistory:    p.DiseaseHistory,
		FarmLatitude:      p.FarmLatitude,
		FarmLongitude:     p.FarmLongitude,
		ExperienceYears:   p.ExperienceYears,
		PreferredLanguage: p.PreferredLanguage,
		FarmEquipment:     p.FarmEquipment,
	}
}

func (v *viewer) expertProfile(p *accounts.ExpertProfile) ExpertProfileView {
	return ExpertProfileView{
		ID:                      p.ID,
		User:                    v.user(p.UserID),
		AreasOfExpertise:        p.AreasOfExpertise,
		Certifications:          p.Certifications,
		Bio:                     p.Bio,
		ExperienceYears:         p.ExperienceYears,
		Institution:             p.Institution,
		LanguagesSpoken:         p.LanguagesSpoken,
		SocialLinks:             p.SocialLinks,
		ValidatedResponsesCount: p.ValidatedResponsesCount,
	}
}

// expertOf returns the expert profile of userID, or nil when it has none.
func (v *viewer) expertOf(userID string) *ExpertProfileView {
	p, ok := v.experts[userID]
	if !ok {
		p, _ = store.Experts(v.tx).ByUser(userID)
		v.experts[userID] = p
	}
	if p == nil {
		return nil
	}
	ev := v.expertProfile(p)
	return &ev
}

func (v *viewer) slot(s *accounts.AvailabilitySlot) SlotView {
	return SlotView{
		ID:        s.ID,
		Expert:    v.expertOf(s.ExpertID),
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		IsBooked:  s.IsBooked,
		IsActive:  s.IsActive,
	}
}

func (v *viewer) booking(b *accounts.ConsultationBooking) BookingView {
	out := BookingView{
		ID:               b.ID,
		Farmer:           v.user(b.FarmerID),
		Status:           b.Status,
		SelectedDate:     b.SelectedDate,
		CreatedAt:        b.CreatedAt,
		NotificationSent: b.NotificationSent,
	}
	if s, err := store.Slots(v.tx).Get(b.SlotID); err == nil {
		sv := v.slot(s)
		out.Slot = &sv
	}
	return out
}

func (v *viewer) response(r *accounts.CommunityResponse) ResponseView {
	out := ResponseView{
		ID:         r.ID,
		PostID:     r.PostID,
		Farmer:     v.user(r.AuthorID),
		Content:    r.Content,
		CreatedAt:  r.CreatedAt,
		IsApproved: r.IsApproved,
		ApprovedBy: v.user(r.ApprovedBy),
	}
	if r.ExpertComment != "" {
		c := r.ExpertComment
		out.ExpertComment = &c
	}
	return out
}

func (v *viewer) post(p *accounts.CommunityPost) (PostView, error) {
	out := PostView{
		ID:             p.ID,
		Farmer:         v.user(p.FarmerID),
		Title:          p.Title,
		Content:        p.Content,
		DiseaseType:    p.DiseaseType,
		CropType:       p.CropType,
		UrgencyLevel:   p.UrgencyLevel,
		CreatedAt:      p.CreatedAt,
		IsApproved:     p.IsApproved,
		IsFlagged:      p.IsFlagged,
		FarmerComments: []ResponseView{},
		ExpertComments: []ExpertComment{},
	}
	responses, err := store.Responses(v.tx).List(func(r *accounts.CommunityResponse) bool {
		return r.PostID == p.ID && r.IsApproved
	})
	if err != nil {
		return out, err
	}
	sortByTime(responses, func(r accounts.CommunityResponse) time.Time { return r.CreatedAt }, false)
	for i := range responses {
		r := &responses[i]
		if author := v.user(r.AuthorID); author != nil && author.Role == accounts.RoleFarmer {
			out.FarmerComments = append(out.FarmerComments, v.response(r))
		}
		if r.ExpertComment != "" {
			out.ExpertComments = append(out.ExpertComments, ExpertComment{
				ID:        r.ID,
				Expert:    v.user(r.ApprovedBy),
				Content:   r.ExpertComment,
				CreatedAt: r.CreatedAt,
			})
		}
	}
	return out, nil
}

func (v *viewer) posts(list []accounts.CommunityPost) ([]PostView, error) {
	sortByTime(list, func(p accounts.CommunityPost) time.Time { return p.CreatedAt }, true)
	out := make([]PostView, 0, len(list))
	for i := range list {
		pv, err := v.post(&list[i])
		if err != nil {
			return nil, err
		}
		out = append(out, pv)
	}
	return out, nil
}
