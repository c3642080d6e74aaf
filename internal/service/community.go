package service

import (
	"errors"
	"sort"
	"strings"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/store"
)

const (
	reasonPost     = "Posted community question"
	reasonResponse = "Posted community response"
)

// Posts lists approved posts, newest first.
func (s *Service) Posts() ([]PostView, error) {
	return s.listPosts(func(p *accounts.CommunityPost) bool { return p.IsApproved })
}

// PendingPosts lists posts awaiting approval, newest first.
func (s *Service) PendingPosts() ([]PostView, error) {
	return s.listPosts(func(p *accounts.CommunityPost) bool { return !p.IsApproved })
}

func (s *Service) listPosts(keep func(*accounts.CommunityPost) bool) ([]PostView, error) {
	var out []PostView
	err := s.db.Accounts.View(func(tx store.Tx) error {
		list, err := store.Posts(tx).List(keep)
		if err != nil {
			return err
		}
		out, err = newViewer(tx).posts(list)
		return err
	})
	return out, err
}

type PostRequest struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	DiseaseType  string `json:"disease_type"`
	CropType     string `json:"crop_type"`
	UrgencyLevel string `json:"urgency_level"`
}

// CreatePost stores a new question awaiting moderation and awards the
// author PointsForPost.
func (s *Service) CreatePost(actor *accounts.User, req PostRequest) (*PostView, error) {
	if actor.Role != accounts.RoleFarmer {
		return nil, accounts.Forbidden("Only farmers can post")
	}
	ve := &accounts.ValidationError{}
	accounts.Required(ve, "title", req.Title)
	accounts.MaxLen(ve, "title", req.Title, accounts.MaxTitleLen)
	accounts.Required(ve, "content", req.Content)

	post := &accounts.CommunityPost{
		ID:           s.newID(),
		FarmerID:     actor.ID,
		Title:        strings.TrimSpace(req.Title),
		Content:      req.Content,
		DiseaseType:  accounts.DiseaseNone,
		CropType:     accounts.CropMaize,
		UrgencyLevel: accounts.UrgencyLow,
		CreatedAt:    s.clock(),
	}
	if req.DiseaseType != "" {
		post.DiseaseType = accounts.DiseaseType(req.DiseaseType)
		if !post.DiseaseType.Valid() {
			ve.Add("disease_type", `"`+req.DiseaseType+`" is not a valid choice.`)
		}
	}
	if req.CropType != "" {
		post.CropType = accounts.CropType(req.CropType)
		if !post.CropType.Valid() {
			ve.Add("crop_type", `"`+req.CropType+`" is not a valid choice.`)
		}
	}
	if req.UrgencyLevel != "" {
		post.UrgencyLevel = accounts.UrgencyLevel(req.UrgencyLevel)
		if !post.UrgencyLevel.Valid() {
			ve.Add("urgency_level", `"`+req.UrgencyLevel+`" is not a valid choice.`)
		}
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	var out *PostView
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		if err := store.Posts(tx).Put(post); err != nil {
			return err
		}
		u, err := store.Users(tx).Get(actor.ID)
		if err != nil {
			return notFound(err, "User")
		}
		if err := s.award(tx, u, accounts.PointsForPost, reasonPost); err != nil {
			return err
		}
		pv, err := newViewer(tx).post(post)
		out = &pv
		return err
	})
	if err != nil {
		return nil, err
	}
	s.rec.PointsAwarded("community_post", accounts.PointsForPost)
	return out, nil
}

type ResponseRequest struct {
	Post    string `json:"post"`
	Content string `json:"content"`
}

// CreateResponse answers a post and awards the author PointsForResponse.
func (s *Service) CreateResponse(actor *accounts.User, req ResponseRequest) (*ResponseView, error) {
	ve := &accounts.ValidationError{}
	accounts.Required(ve, "post", req.Post)
	accounts.Required(ve, "content", req.Content)
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	resp := &accounts.CommunityResponse{
		ID:        s.newID(),
		PostID:    req.Post,
		AuthorID:  actor.ID,
		Content:   req.Content,
		CreatedAt: s.clock(),
	}
	var out *ResponseView
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		if _, err := store.Posts(tx).Get(req.Post); err != nil {
			return notFound(err, "Post")
		}
		if err := store.Responses(tx).Put(resp); err != nil {
			return err
		}
		u, err := store.Users(tx).Get(actor.ID)
		if err != nil {
			return notFound(err, "User")
		}
		if err := s.award(tx, u, accounts.PointsForResponse, reasonResponse); err != nil {
			return err
		}
		rv := newViewer(tx).response(resp)
		out = &rv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.rec.PointsAwarded("community_response", accounts.PointsForResponse)
	return out, nil
}

const (
	ActionFlag   = "flag"
	ActionUnflag = "unflag"
)

// ModeratePost applies approve, flag or unflag to a post.
func (s *Service) ModeratePost(id, action string) (*PostView, error) {
	return s.updatePost(id, func(p *accounts.CommunityPost) error {
		switch action {
		case ActionApprove:
			p.IsApproved = true
		case ActionFlag:
			p.IsFlagged = true
		case ActionUnflag:
			p.IsFlagged = false
		default:
			return ErrInvalidAction
		}
		return nil
	})
}

// SetPostApproval sets is_approved on a post.
func (s *Service) SetPostApproval(id string, approved bool) (*PostView, error) {
	return s.updatePost(id, func(p *accounts.CommunityPost) error {
		p.IsApproved = approved
		return nil
	})
}

func (s *Service) updatePost(id string, mutate func(*accounts.CommunityPost) error) (*PostView, error) {
	var out *PostView
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		repo := store.Posts(tx)
		p, err := repo.Get(id)
		if err != nil {
			return notFound(err, "Post")
		}
		if err := mutate(p); err != nil {
			return err
		}
		if err := repo.Put(p); err != nil {
			return err
		}
		pv, err := newViewer(tx).post(p)
		out = &pv
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateResponse approves a response with the expert's comment. The
// expert's validated_responses_count grows only on the first approval.
func (s *Service) ValidateResponse(expert *accounts.User, id, comment string) (*ResponseView, error) {
	if expert.Role != accounts.RoleExpert {
		return nil, accounts.ErrPermission
	}
	if strings.TrimSpace(comment) == "" {
		return nil, accounts.NewValidationError("expert_comment", "This field is required.")
	}
	var out *ResponseView
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		repo := store.Responses(tx)
		r, err := repo.Get(id)
		if err != nil {
			return notFound(err, "Response")
		}
		first := !r.IsApproved
		r.IsApproved = true
		r.ExpertComment = comment
		r.ApprovedBy = expert.ID
		if err := repo.Put(r); err != nil {
			return err
		}
		if first {
			profiles := store.Experts(tx)
			p, err := profiles.ByUser(expert.ID)
			switch {
			case err == nil:
				p.ValidatedResponsesCount++
				if err := profiles.Put(expert.ID, p); err != nil {
					return err
				}
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}
		rv := newViewer(tx).response(r)
		out = &rv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type FarmerPostCount struct {
	FarmerID  string `json:"farmer_id"`
	PostCount int    `json:"post_count"`
}

// FarmerPostCounts counts posts per farmer, busiest first. Farmers without
// posts are included with a zero count.
func (s *Service) FarmerPostCounts() ([]FarmerPostCount, error) {
	var out []FarmerPostCount
	err := s.db.Accounts.View(func(tx store.Tx) error {
		counts := map[string]int{}
		farmers, err := store.Users(tx).List(func(u *accounts.User) bool { return u.Role == accounts.RoleFarmer })
		if err != nil {
			return err
		}
		for _, f := range farmers {
			counts[f.ID] = 0
		}
		_, err = store.Posts(tx).List(func(p *accounts.CommunityPost) bool {
			counts[p.FarmerID]++
			return false
		})
		if err != nil {
			return err
		}
		out = make([]FarmerPostCount, 0, len(counts))
		for id, n := range counts {
			out = append(out, FarmerPostCount{FarmerID: id, PostCount: n})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].PostCount != out[j].PostCount {
				return out[i].PostCount > out[j].PostCount
			}
			return out[i].FarmerID < out[j].FarmerID
		})
		return nil
	})
	return out, err
}
