package store

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/agrilink/usermgmt/internal/accounts"
)

// UserRepo keeps users plus unique indexes on email and username.
type UserRepo struct{ tx Tx }

func Users(tx Tx) UserRepo { return UserRepo{tx: tx} }

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (r UserRepo) Get(id string) (*accounts.User, error) {
	return getJSON[accounts.User](r.tx, BucketUsers, id)
}

func (r UserRepo) ByEmail(email string) (*accounts.User, error) {
	id, err := r.tx.Get(BucketUsersByEmail, emailKey(email))
	if err != nil {
		return nil, err
	}
	return r.Get(string(id))
}

func (r UserRepo) claim(bucket, key, id, field, value string) error {
	owner, err := r.tx.Get(bucket, key)
	switch {
	case err == nil && string(owner) != id:
		return &DuplicateError{Field: field, Value: value}
	case err != nil && !errors.Is(err, ErrNotFound):
		return err
	}
	return r.tx.Put(bucket, key, []byte(id))
}

// Create inserts u, failing with *DuplicateError when email or username is taken.
func (r UserRepo) Create(u *accounts.User) error {
	if _, err := r.tx.Get(BucketUsers, u.ID); err == nil {
		return &DuplicateError{Field: "id", Value: u.ID}
	}
	if err := r.claim(BucketUsersByEmail, emailKey(u.Email), u.ID, "email", u.Email); err != nil {
		return err
	}
	if err := r.claim(BucketUsersByUsername, u.Username, u.ID, "username", u.Username); err != nil {
		return err
	}
	return putJSON(r.tx, BucketUsers, u.ID, u)
}

// Update stores u and moves its index entries when email or username changed.
func (r UserRepo) Update(u *accounts.User) error {
	prev, err := r.Get(u.ID)
	if err != nil {
		return err
	}
	if emailKey(prev.Email) != emailKey(u.Email) {
		if err := r.claim(BucketUsersByEmail, emailKey(u.Email), u.ID, "email", u.Email); err != nil {
			return err
		}
		if err := r.tx.Delete(BucketUsersByEmail, emailKey(prev.Email)); err != nil {
			return err
		}
	}
	if prev.Username != u.Username {
		if err := r.claim(BucketUsersByUsername, u.Username, u.ID, "username", u.Username); err != nil {
			return err
		}
		if err := r.tx.Delete(BucketUsersByUsername, prev.Username); err != nil {
			return err
		}
	}
	return putJSON(r.tx, BucketUsers, u.ID, u)
}

// List returns users ordered by join date.
func (r UserRepo) List(keep func(*accounts.User) bool) ([]accounts.User, error) {
	out, err := listJSON(r.tx, BucketUsers, keep)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DateJoined.Before(out[j].DateJoined) })
	return out, nil
}

// ProfileRepo stores one profile per user, keyed by user ID.
type ProfileRepo[T any] struct {
	tx     Tx
	bucket string
}

func Farmers(tx Tx) ProfileRepo[accounts.FarmerProfile] {
	return ProfileRepo[accounts.FarmerProfile]{tx: tx, bucket: BucketFarmerProfiles}
}

func Experts(tx Tx) ProfileRepo[accounts.ExpertProfile] {
	return ProfileRepo[accounts.ExpertProfile]{tx: tx, bucket: BucketExpertProfiles}
}

func (r ProfileRepo[T]) ByUser(userID string) (*T, error) {
	return getJSON[T](r.tx, r.bucket, userID)
}

func (r ProfileRepo[T]) Put(userID string, p *T) error {
	return putJSON(r.tx, r.bucket, userID, p)
}

// Records is a plain ID-keyed collection.
type Records[T any] struct {
	tx     Tx
	bucket string
	id     func(*T) string
}

func Slots(tx Tx) Records[accounts.AvailabilitySlot] {
	return Records[accounts.AvailabilitySlot]{tx: tx, bucket: BucketSlots, id: func(s *accounts.AvailabilitySlot) string { return s.ID }}
}

func Bookings(tx Tx) Records[accounts.ConsultationBooking] {
	return Records[accounts.ConsultationBooking]{tx: tx, bucket: BucketBookings, id: func(b *accounts.ConsultationBooking) string { return b.ID }}
}

func Posts(tx Tx) Records[accounts.CommunityPost] {
	return Records[accounts.CommunityPost]{tx: tx, bucket: BucketPosts, id: func(p *accounts.CommunityPost) string { return p.ID }}
}

func Responses(tx Tx) Records[accounts.CommunityResponse] {
	return Records[accounts.CommunityResponse]{tx: tx, bucket: BucketResponses, id: func(r *accounts.CommunityResponse) string { return r.ID }}
}

func PointTxns(tx Tx) Records[accounts.PointTransaction] {
	return Records[accounts.PointTransaction]{tx: tx, bucket: BucketPointTxns, id: func(p *accounts.PointTransaction) string { return p.ID }}
}

func FeedbackItems(tx Tx) Records[accounts.Feedback] {
	return Records[accounts.Feedback]{tx: tx, bucket: BucketFeedback, id: func(f *accounts.Feedback) string { return f.ID }}
}

func ResetTokens(tx Tx) Records[accounts.PasswordResetToken] {
	return Records[accounts.PasswordResetToken]{tx: tx, bucket: BucketResetTokens, id: func(t *accounts.PasswordResetToken) string { return t.Token }}
}

func Metrics(tx Tx) Records[accounts.SystemMetric] {
	return Records[accounts.SystemMetric]{tx: tx, bucket: BucketSystemMetrics, id: func(m *accounts.SystemMetric) string { return m.ID }}
}

func (r Records[T]) Get(id string) (*T, error) {
	return getJSON[T](r.tx, r.bucket, id)
}

func (r Records[T]) Put(v *T) error {
	return putJSON(r.tx, r.bucket, r.id(v), v)
}

func (r Records[T]) Delete(id string) error {
	return r.tx.Delete(r.bucket, id)
}

func (r Records[T]) List(keep func(*T) bool) ([]T, error) {
	return listJSON(r.tx, r.bucket, keep)
}

// Count returns how many records keep accepts.
func (r Records[T]) Count(keep func(*T) bool) (int, error) {
	n := 0
	_, err := listJSON(r.tx, r.bucket, func(v *T) bool {
		if keep == nil || keep(v) {
			n++
		}
		return false
	})
	return n, err
}

const settingsKey = "runtime"

// GetSettings returns stored settings, or def when none were saved yet.
func GetSettings(tx Tx, def accounts.Settings) (accounts.Settings, error) {
	s, err := getJSON[accounts.Settings](tx, BucketSettings, settingsKey)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return accounts.Settings{}, err
	}
	return *s, nil
}

func PutSettings(tx Tx, s accounts.Settings) error {
	s.UpdatedAt = time.Now().UTC()
	return putJSON(tx, BucketSettings, settingsKey, s)
}
