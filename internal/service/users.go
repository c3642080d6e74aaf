package service

import (
	"strings"
	"time"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/store"
)

func (s *Service) FarmerProfile(actor *accounts.User) (*FarmerProfileView, error) {
	var out *FarmerProfileView
	err := s.db.Accounts.View(func(tx store.Tx) error {
		p, err := store.Farmers(tx).ByUser(actor.ID)
		if err != nil {
			return notFound(err, "Farmer profile")
		}
		v := newViewer(tx).farmerProfile(p)
		out = &v
		return nil
	})
	return out, err
}

// FarmerProfileUpdate is a partial update; nil fields are left unchanged.
type FarmerProfileUpdate struct {
	FarmLocation      *string   `json:"farm_location"`
	FarmSize          *float64  `json:"farm_size"`
	CropTypes         *[]string `json:"crop_types"`
	SoilType          *string   `json:"soil_type"`
	IrrigationMethod  *string   `json:"irrigation_method"`
	DiseaseHistory    *string   `json:"disease_history"`
	FarmLatitude      *float64  `json:"farm_latitude"`
	FarmLongitude     *float64  `json:"farm_longitude"`
	ExperienceYears   *int      `json:"experience_years"`
	PreferredLanguage *string   `json:"preferred_language"`
	FarmEquipment     *string   `json:"farm_equipment"`
}

func (s *Service) UpdateFarmerProfile(actor *accounts.User, req FarmerProfileUpdate) (*FarmerProfileView, error) {
	ve := &accounts.ValidationError{}
	if req.FarmLocation != nil {
		accounts.Required(ve, "farm_location", *req.FarmLocation)
		accounts.MaxLen(ve, "farm_location", *req.FarmLocation, accounts.MaxFarmLocationLen)
	}
	if req.FarmSize != nil && *req.FarmSize < 0 {
		ve.Add("farm_size", "Ensure this value is greater than or equal to 0.")
	}
	var crops []accounts.CropType
	if req.CropTypes != nil {
		var err error
		if crops, err = accounts.ParseCropTypes(*req.CropTypes); err != nil {
			ve.Add("crop_types", err.(*accounts.ValidationError).Fields["crop_types"])
		}
	}
	if req.SoilType != nil {
		accounts.MaxLen(ve, "soil_type", *req.SoilType, 100)
	}
	if req.IrrigationMethod != nil {
		accounts.MaxLen(ve, "irrigation_method", *req.IrrigationMethod, 100)
	}
	if req.PreferredLanguage != nil {
		accounts.MaxLen(ve, "preferred_language", *req.PreferredLanguage, 50)
	}
	if req.FarmLatitude != nil && (*req.FarmLatitude < -90 || *req.FarmLatitude > 90) {
		ve.Add("farm_latitude", "Ensure this value is between -90 and 90.")
	}
	if req.FarmLongitude != nil && (*req.FarmLongitude < -180 || *req.FarmLongitude > 180) {
		ve.Add("farm_longitude", "Ensure this value is between -180 and 180.")
	}
	if req.ExperienceYears != nil && *req.ExperienceYears < 0 {
		ve.Add("experience_years", "Ensure this value is greater than or equal to 0.")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	var out *FarmerProfileView
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		repo := store.Farmers(tx)
		p, err := repo.ByUser(actor.ID)
		if err != nil {
			return notFound(err, "Farmer profile")
		}
		setString(&p.FarmLocation, req.FarmLocation)
		if req.FarmSize != nil {
			p.FarmSize = *req.FarmSize
		}
		if req.CropTypes != nil {
			p.CropTypes = crops
		}
		setString(&p.SoilType, req.SoilType)
		setString(&p.IrrigationMethod, req.IrrigationMethod)
		setString(&p.DiseaseHistory, req.DiseaseHistory)
		if req.FarmLatitude != nil {
			p.FarmLatitude = req.FarmLatitude
		}
		if req.FarmLongitude != nil {
			p.FarmLongitude = req.FarmLongitude
		}
		if req.ExperienceYears != nil {
			p.ExperienceYears = *req.ExperienceYears
		}
		setString(&p.PreferredLanguage, req.PreferredLanguage)
		setString(&p.FarmEquipment, req.FarmEquipment)
		if err := repo.Put(actor.ID, p); err != nil {
			return err
		}
		v := newViewer(tx).farmerProfile(p)
		out = &v
		return nil
	})
	return out, err
}

func (s *Service) ExpertProfile(actor *accounts.User) (*ExpertProfileView, error) {
	var out *ExpertProfileView
	err := s.db.Accounts.View(func(tx store.Tx) error {
		p, err := store.Experts(tx).ByUser(actor.ID)
		if err != nil {
			return notFound(err, "Expert profile")
		}
		v := newViewer(tx).expertProfile(p)
		out = &v
		return nil
	})
	return out, err
}

// UserUpdate carries the user fields an owner or admin may change.
type UserUpdate struct {
	Email       *string `json:"email"`
	Username    *string `json:"username"`
	PhoneNumber *string `json:"phone_number"`
}

func (uu *UserUpdate) validate(ve *accounts.ValidationError) {
	if uu == nil {
		return
	}
	if uu.Email != nil {
		accounts.Required(ve, "email", *uu.Email)
		if *uu.Email != "" && !accounts.ValidEmail(accounts.NormalizeEmail(*uu.Email)) {
			ve.Add("email", "Enter a valid email address.")
		}
	}
	if uu.Username != nil {
		accounts.Required(ve, "username", *uu.Username)
		if *uu.Username != "" && !accounts.ValidUsername(*uu.Username) {
			ve.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
		}
	}
	if uu.PhoneNumber != nil {
		accounts.MaxLen(ve, "phone_number", *uu.PhoneNumber, accounts.MaxPhoneLen)
	}
}

func (uu *UserUpdate) apply(u *accounts.User) {
	if uu == nil {
		return
	}
	if uu.Email != nil {
		u.Email = accounts.NormalizeEmail(*uu.Email)
	}
	setString(&u.Username, uu.Username)
	setString(&u.PhoneNumber, uu.PhoneNumber)
}

type ExpertProfileUpdate struct {
	User             *UserUpdate `json:"user"`
	AreasOfExpertise *string     `json:"areas_of_expertise"`
	Certifications   *string     `json:"certifications"`
	Bio              *string     `json:"bio"`
	ExperienceYears  *int        `json:"experience_years"`
	Institution      *string     `json:"institution"`
	LanguagesSpoken  *string     `json:"languages_spoken"`
	SocialLinks      *string     `json:"social_links"`
}

func (s *Service) UpdateExpertProfile(actor *accounts.User, req ExpertProfileUpdate) (*ExpertProfileView, error) {
	ve := &accounts.ValidationError{}
	req.User.validate(ve)
	if req.AreasOfExpertise != nil {
		accounts.Required(ve, "areas_of_expertise", *req.AreasOfExpertise)
	}
	if req.ExperienceYears != nil && *req.ExperienceYears < 0 {
		ve.Add("experience_years", "Ensure this value is greater than or equal to 0.")
	}
	if req.Institution != nil {
		accounts.MaxLen(ve, "institution", *req.Institution, accounts.MaxInstitutionLen)
	}
	if req.LanguagesSpoken != nil {
		accounts.MaxLen(ve, "languages_spoken", *req.LanguagesSpoken, accounts.MaxLanguagesLen)
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	var out *ExpertProfileView
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		repo := store.Experts(tx)
		p, err := repo.ByUser(actor.ID)
		if err != nil {
			return notFound(err, "Expert profile")
		}
		if req.User != nil {
			users := store.Users(tx)
			u, err := users.Get(actor.ID)
			if err != nil {
				return notFound(err, "User")
			}
			req.User.apply(u)
			if err := users.Update(u); err != nil {
				return duplicate(err)
			}
		}
		setString(&p.AreasOfExpertise, req.AreasOfExpertise)
		setString(&p.Certifications, req.Certifications)
		setString(&p.Bio, req.Bio)
		if req.ExperienceYears != nil {
			p.ExperienceYears = *req.ExperienceYears
		}
		setString(&p.Institution, req.Institution)
		setString(&p.LanguagesSpoken, req.LanguagesSpoken)
		setString(&p.SocialLinks, req.SocialLinks)
		if err := repo.Put(actor.ID, p); err != nil {
			return err
		}
		v := newViewer(tx).expertProfile(p)
		out = &v
		return nil
	})
	return out, err
}

// ListUsers returns all users, optionally only those with role.
func (s *Service) ListUsers(role accounts.Role) ([]UserView, error) {
	var out []UserView
	err := s.db.Accounts.View(func(tx store.Tx) error {
		list, err := store.Users(tx).List(func(u *accounts.User) bool {
			return role == "" || u.Role == role
		})
		if err != nil {
			return err
		}
		out = make([]UserView, 0, len(list))
		for i := range list {
			out = append(out, NewUserView(&list[i]))
		}
		return nil
	})
	return out, err
}

// AdminUserUpdate is either an action (approve, block) or a partial edit.
type AdminUserUpdate struct {
	Action string `json:"action"`
	UserUpdate
	Role *string `json:"role"`
}

const (
	ActionApprove = "approve"
	ActionBlock   = "block"
)

func (s *Service) UpdateUser(id string, req AdminUserUpdate) (*UserView, error) {
	var out *UserView
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		users := store.Users(tx)
		u, err := users.Get(id)
		if err != nil {
			return notFound(err, "User")
		}
		switch req.Action {
		case ActionApprove:
			u.IsApproved = true
		case ActionBlock:
			u.IsApproved = false
			u.IsActive = false
		default:
			ve := &accounts.ValidationError{}
			req.UserUpdate.validate(ve)
			if req.Role != nil && !accounts.Role(*req.Role).Valid() {
				ve.Add("role", `"`+*req.Role+`" is not a valid choice.`)
			}
			if err := ve.OrNil(); err != nil {
				return err
			}
			req.UserUpdate.apply(u)
			if req.Role != nil {
				u.Role = accounts.Role(*req.Role)
			}
		}
		if err := users.Update(u); err != nil {
			return duplicate(err)
		}
		v := NewUserView(u)
		out = &v
		return nil
	})
	return out, err
}

// PointHistory lists the actor's point transactions, newest first.
func (s *Service) PointHistory(actor *accounts.User) ([]PointView, error) {
	var out []PointView
	err := s.db.Accounts.View(func(tx store.Tx) error {
		list, err := store.PointTxns(tx).List(func(p *accounts.PointTransaction) bool { return p.UserID == actor.ID })
		if err != nil {
			return err
		}
		sortByTime(list, func(p accounts.PointTransaction) time.Time { return p.CreatedAt }, true)
		v := newViewer(tx)
		out = make([]PointView, 0, len(list))
		for _, p := range list {
			out = append(out, PointView{
				ID:        p.ID,
				User:      v.user(p.UserID),
				Points:    p.Points,
				Reason:    p.Reason,
				CreatedAt: p.CreatedAt,
			})
		}
		return nil
	})
	return out, err
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
