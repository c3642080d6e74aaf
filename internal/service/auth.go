package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/auth"
	"github.com/agrilink/usermgmt/internal/logger"
	"github.com/agrilink/usermgmt/internal/notify"
	"github.com/agrilink/usermgmt/internal/store"
)

type RegisterFarmerRequest struct {
	Email           string   `json:"email"`
	Username        string   `json:"username"`
	Password        string   `json:"password"`
	ConfirmPassword string   `json:"confirm_password"`
	PhoneNumber     string   `json:"phone_number"`
	FarmLocation    string   `json:"farm_location"`
	FarmSize        *float64 `json:"farm_size"`
	CropTypes       []string `json:"crop_types"`
}

type RegisterExpertRequest struct {
	Email            string `json:"email"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	PhoneNumber      string `json:"phone_number"`
	AreasOfExpertise string `json:"areas_of_expertise"`
	Certifications   string `json:"certifications"`
	Bio              string `json:"bio"`
	ExperienceYears  int    `json:"experience_years"`
	Institution      string `json:"institution"`
	LanguagesSpoken  string `json:"languages_spoken"`
	SocialLinks      string `json:"social_links"`
}

type Registration struct {
	User    UserView `json:"user"`
	Profile any      `json:"profile"`
}

// checkAccountFields validates the fields shared by every registration.
func checkAccountFields(ve *accounts.ValidationError, email, username, password, phone string) {
	accounts.Required(ve, "email", email)
	if strings.TrimSpace(email) != "" && !accounts.ValidEmail(accounts.NormalizeEmail(email)) {
		ve.Add("email", "Enter a valid email address.")
	}
	accounts.Required(ve, "username", username)
	accounts.MaxLen(ve, "username", username, accounts.MaxUsernameLen)
	if username != "" && !accounts.ValidUsername(username) {
		ve.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	if err := accounts.ValidatePassword("password", password); err != nil {
		ve.Add("password", err.(*accounts.ValidationError).Fields["password"])
	}
	accounts.MaxLen(ve, "phone_number", phone, accounts.MaxPhoneLen)
}

func (s *Service) newUser(email, username, password, phone string, role accounts.Role) (*accounts.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &accounts.User{
		ID:           s.newID(),
		Email:        accounts.NormalizeEmail(email),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		PhoneNumber:  phone,
		IsActive:     true,
		DateJoined:   s.clock(),
	}, nil
}

func (s *Service) RegisterFarmer(req RegisterFarmerRequest) (*Registration, error) {
	set, err := s.settings()
	if err != nil {
		return nil, err
	}
	if !set.FarmerRegistrationOpen {
		return nil, accounts.Forbidden("Farmer registration is closed")
	}

	ve := &accounts.ValidationError{}
	checkAccountFields(ve, req.Email, req.Username, req.Password, req.PhoneNumber)
	accounts.Required(ve, "confirm_password", req.ConfirmPassword)
	accounts.Required(ve, "farm_location", req.FarmLocation)
	accounts.MaxLen(ve, "farm_location", req.FarmLocation, accounts.MaxFarmLocationLen)
	switch {
	case req.FarmSize == nil:
		ve.Add("farm_size", "This field is required.")
	case *req.FarmSize < 0:
		ve.Add("farm_size", "Ensure this value is greater than or equal to 0.")
	}
	crops, err := accounts.ParseCropTypes(req.CropTypes)
	if err != nil {
		ve.Add("crop_types", err.(*accounts.ValidationError).Fields["crop_types"])
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}
	if req.Password != req.ConfirmPassword {
		return nil, accounts.NewValidationError("confirm_password", "Passwords do not match")
	}

	u, err := s.newUser(req.Email, req.Username, req.Password, req.PhoneNumber, accounts.RoleFarmer)
	if err != nil {
		return nil, err
	}
	profile := &accounts.FarmerProfile{
		ID:           s.newID(),
		UserID:       u.ID,
		FarmLocation: strings.TrimSpace(req.FarmLocation),
		FarmSize:     *req.FarmSize,
		CropTypes:    crops,
	}

	var out *Registration
	err = s.db.Accounts.Update(func(tx store.Tx) error {
		if err := store.Users(tx).Create(u); err != nil {
			return duplicate(err)
		}
		if err := store.Farmers(tx).Put(u.ID, profile); err != nil {
			return err
		}
		v := newViewer(tx)
		out = &Registration{User: NewUserView(u), Profile: v.farmerProfile(profile)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.rec.Registered(string(accounts.RoleFarmer))
	logger.Info("registered farmer %s", u.Email)
	return out, nil
}

func (s *Service) RegisterExpert(req RegisterExpertRequest) (*Registration, error) {
	set, err := s.settings()
	if err != nil {
		return nil, err
	}
	if !set.ExpertRegistrationOpen {
		return nil, accounts.Forbidden("Expert registration is closed")
	}

	ve := &accounts.ValidationError{}
	checkAccountFields(ve, req.Email, req.Username, req.Password, req.PhoneNumber)
	accounts.Required(ve, "areas_of_expertise", req.AreasOfExpertise)
	accounts.MaxLen(ve, "institution", req.Institution, accounts.MaxInstitutionLen)
	accounts.MaxLen(ve, "languages_spoken", req.LanguagesSpoken, accounts.MaxLanguagesLen)
	if req.ExperienceYears < 0 {
		ve.Add("experience_years", "Ensure this value is greater than or equal to 0.")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	u, err := s.newUser(req.Email, req.Username, req.Password, req.PhoneNumber, accounts.RoleExpert)
	if err != nil {
		return nil, err
	}
	u.IsApproved = set.ExpertAutoApprove
	profile := &accounts.ExpertProfile{
		ID:               s.newID(),
		UserID:           u.ID,
		AreasOfExpertise: req.AreasOfExpertise,
		Certifications:   req.Certifications,
		Bio:              req.Bio,
		ExperienceYears:  req.ExperienceYears,
		Institution:      req.Institution,
		LanguagesSpoken:  req.LanguagesSpoken,
		SocialLinks:      req.SocialLinks,
	}

	var out *Registration
	err = s.db.Accounts.Update(func(tx store.Tx) error {
		if err := store.Users(tx).Create(u); err != nil {
			return duplicate(err)
		}
		if err := store.Experts(tx).Put(u.ID, profile); err != nil {
			return err
		}
		v := newViewer(tx)
		out = &Registration{User: NewUserView(u), Profile: v.expertProfile(profile)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.rec.Registered(string(accounts.RoleExpert))
	logger.Info("registered expert %s (approved=%v)", u.Email, u.IsApproved)
	return out, nil
}

// CreateAdmin creates an active, approved administrator.
func (s *Service) CreateAdmin(email, username, password string) (*UserView, error) {
	ve := &accounts.ValidationError{}
	checkAccountFields(ve, email, username, password, "")
	if err := ve.OrNil(); err != nil {
		return nil, err
	}
	u, err := s.newUser(email, username, password, "", accounts.RoleAdmin)
	if err != nil {
		return nil, err
	}
	u.IsApproved = true
	err = s.db.Accounts.Update(func(tx store.Tx) error {
		return duplicate(store.Users(tx).Create(u))
	})
	if err != nil {
		return nil, err
	}
	v := NewUserView(u)
	return &v, nil
}

type LoginUser struct {
	ID          string        `json:"id"`
	Email       string        `json:"email"`
	Username    string        `json:"username"`
	Role        accounts.Role `json:"role"`
	PhoneNumber *string       `json:"phone_number"`
	Profile     any           `json:"profile"`
}

type LoginResult struct {
	Refresh string    `json:"refresh"`
	Access  string    `json:"access"`
	User    LoginUser `json:"user"`
}

// Login checks credentials and returns a token pair plus the user's profile.
// Unknown, inactive and wrong-password logins all fail with
// auth.ErrInvalidCredentials.
func (s *Service) Login(email, password string) (*LoginResult, error) {
	ve := &accounts.ValidationError{}
	accounts.Required(ve, "email", email)
	accounts.Required(ve, "password", password)
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	var out *LoginResult
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		users := store.Users(tx)
		u, err := users.ByEmail(email)
		if errors.Is(err, store.ErrNotFound) {
			return auth.ErrInvalidCredentials
		}
		if err != nil {
			return err
		}
		if err := auth.VerifyPassword(u.PasswordHash, password); err != nil {
			return err
		}
		if !u.IsActive {
			return auth.ErrInvalidCredentials
		}
		now := s.clock()
		u.LastLogin = &now
		if err := users.Update(u); err != nil {
			return err
		}

		pair, err := s.tokens.IssuePair(u)
		if err != nil {
			return err
		}
		lu := LoginUser{ID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}
		if u.PhoneNumber != "" {
			p := u.PhoneNumber
			lu.PhoneNumber = &p
		}
		v := newViewer(tx)
		switch u.Role {
		case accounts.RoleFarmer:
			if p, err := store.Farmers(tx).ByUser(u.ID); err == nil {
				lu.Profile = v.farmerProfile(p)
			}
		case accounts.RoleExpert:
			if p, err := store.Experts(tx).ByUser(u.ID); err == nil {
				lu.Profile = v.expertProfile(p)
			}
		}
		out = &LoginResult{Refresh: pair.Refresh, Access: pair.Access, User: lu}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(refresh string) (string, error) {
	if strings.TrimSpace(refresh) == "" {
		return "", accounts.NewValidationError("refresh", "This field is required.")
	}
	claims, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return "", err
	}
	u, err := s.activeUser(claims.UserID)
	if err != nil {
		return "", err
	}
	return s.tokens.IssueAccess(u)
}

// Authenticate resolves an access token to its active user.
func (s *Service) Authenticate(access string) (*accounts.User, error) {
	claims, err := s.tokens.ParseAccess(access)
	if err != nil {
		return nil, err
	}
	return s.activeUser(claims.UserID)
}

func (s *Service) activeUser(id string) (*accounts.User, error) {
	var u *accounts.User
	err := s.db.Accounts.View(func(tx store.Tx) error {
		var err error
		u, err = store.Users(tx).Get(id)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, auth.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, auth.ErrUserInactive
	}
	return u, nil
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (s *Service) ChangePassword(actor *accounts.User, req ChangePasswordRequest) error {
	ve := &accounts.ValidationError{}
	accounts.Required(ve, "old_password", req.OldPassword)
	accounts.Required(ve, "new_password", req.NewPassword)
	accounts.Required(ve, "confirm_password", req.ConfirmPassword)
	if err := ve.OrNil(); err != nil {
		return err
	}
	if req.NewPassword != req.ConfirmPassword {
		return accounts.NewValidationError("confirm_password", "New passwords do not match")
	}
	if err := accounts.ValidatePassword("new_password", req.NewPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.Accounts.Update(func(tx store.Tx) error {
		users := store.Users(tx)
		u, err := users.Get(actor.ID)
		if err != nil {
			return notFound(err, "User")
		}
		if err := auth.VerifyPassword(u.PasswordHash, req.OldPassword); err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				return accounts.NewValidationError("old_password", "Incorrect old password")
			}
			return err
		}
		u.PasswordHash = hash
		return users.Update(u)
	})
}

// ForgotPassword issues a reset token for email and mails it.
func (s *Service) ForgotPassword(email string) error {
	if strings.TrimSpace(email) == "" {
		return accounts.NewValidationError("email", "This field is required.")
	}
	if !accounts.ValidEmail(accounts.NormalizeEmail(email)) {
		return accounts.NewValidationError("email", "Enter a valid email address.")
	}
	now := s.clock()
	var (
		u   *accounts.User
		tok accounts.PasswordResetToken
	)
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		var err error
		u, err = store.Users(tx).ByEmail(email)
		if errors.Is(err, store.ErrNotFound) {
			return accounts.NewValidationError("email", "No user found with this email")
		}
		if err != nil {
			return err
		}
		tok = accounts.PasswordResetToken{
			Token:     uuid.NewString(),
			UserID:    u.ID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.opts.ResetTokenTTL),
		}
		return store.ResetTokens(tx).Put(&tok)
	})
	if err != nil {
		return err
	}
	s.enqueue(notify.Job{Message: notify.Message{
		To:      []string{u.Email},
		Subject: "Password Reset Request",
		Body: fmt.Sprintf("Use the following token to reset your password: %s\n"+
			"The token expires at %s.", tok.Token, tok.ExpiresAt.Format("2006-01-02 15:04 MST")),
	}})
	return nil
}

type ResetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (s *Service) ResetPassword(req ResetPasswordRequest) error {
	ve := &accounts.ValidationError{}
	accounts.Required(ve, "token", req.Token)
	accounts.Required(ve, "new_password", req.NewPassword)
	accounts.Required(ve, "confirm_password", req.ConfirmPassword)
	if err := ve.OrNil(); err != nil {
		return err
	}
	if _, err := uuid.Parse(req.Token); err != nil {
		return accounts.NewValidationError("token", "Must be a valid UUID.")
	}
	if req.NewPassword != req.ConfirmPassword {
		return accounts.NewValidationError("confirm_password", "Passwords do not match")
	}
	if err := accounts.ValidatePassword("new_password", req.NewPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	now := s.clock()
	return s.db.Accounts.Update(func(tx store.Tx) error {
		tokens := store.ResetTokens(tx)
		tok, err := tokens.Get(req.Token)
		if errors.Is(err, store.ErrNotFound) {
			return accounts.NewValidationError("token", "Invalid token")
		}
		if err != nil {
			return err
		}
		if !tok.Valid(now) {
			return accounts.NewValidationError("token", "Token has expired")
		}
		users := store.Users(tx)
		u, err := users.Get(tok.UserID)
		if err != nil {
			return notFound(err, "User")
		}
		u.PasswordHash = hash
		if err := users.Update(u); err != nil {
			return err
		}
		tok.UsedAt = &now
		return tokens.Put(tok)
	})
}
