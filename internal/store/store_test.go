package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/usermgmt/internal/accounts"
)

func drivers(t *testing.T) map[string]*DB {
	t.Helper()
	bolt, err := Open(DriverBolt, t.TempDir())
	require.NoError(t, err)
	mem, err := Open(DriverMemory, "")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = bolt.Close()
		_ = mem.Close()
	})
	return map[string]*DB{DriverBolt: bolt, DriverMemory: mem}
}

func newUser(id, email, username string) *accounts.User {
	return &accounts.User{
		ID:         id,
		Email:      email,
		Username:   username,
		Role:       accounts.RoleFarmer,
		IsActive:   true,
		DateJoined: time.Now().UTC(),
	}
}

func TestUserUniqueIndexes(t *testing.T) {
	for name, db := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			err := db.Accounts.Update(func(tx Tx) error {
				return Users(tx).Create(newUser("u1", "jane@example.com", "jane"))
			})
			require.NoError(t, err)

			err = db.Accounts.Update(func(tx Tx) error {
				return Users(tx).Create(newUser("u2", "JANE@example.com", "other"))
			})
			var dup *DuplicateError
			require.True(t, errors.As(err, &dup))
			assert.Equal(t, "email", dup.Field)

			err = db.Accounts.Update(func(tx Tx) error {
				return Users(tx).Create(newUser("u3", "x@example.com", "jane"))
			})
			require.True(t, errors.As(err, &dup))
			assert.Equal(t, "username", dup.Field)

			// The failed transactions must not leave index entries behind.
			err = db.Accounts.View(func(tx Tx) error {
				_, err := Users(tx).ByEmail("x@example.com")
				return err
			})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestUserUpdateMovesIndexes(t *testing.T) {
	for name, db := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Accounts.Update(func(tx Tx) error {
				return Users(tx).Create(newUser("u1", "old@example.com", "old"))
			}))
			require.NoError(t, db.Accounts.Update(func(tx Tx) error {
				u, err := Users(tx).Get("u1")
				if err != nil {
					return err
				}
				u.Email = "new@example.com"
				u.Username = "new"
				return Users(tx).Update(u)
			}))
			require.NoError(t, db.Accounts.View(func(tx Tx) error {
				u, err := Users(tx).ByEmail("new@example.com")
				require.NoError(t, err)
				assert.Equal(t, "u1", u.ID)
				_, err = Users(tx).ByEmail("old@example.com")
				assert.ErrorIs(t, err, ErrNotFound)
				id, err := tx.Get(BucketUsersByUsername, "new")
				require.NoError(t, err)
				assert.Equal(t, "u1", string(id))
				return nil
			}))
		})
	}
}

func TestRecordsListAndCount(t *testing.T) {
	for name, db := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Accounts.Update(func(tx Tx) error {
				for i, approved := range []bool{true, false, true} {
					p := &accounts.CommunityPost{ID: string(rune('a' + i)), IsApproved: approved}
					if err := Posts(tx).Put(p); err != nil {
						return err
					}
				}
				return nil
			}))
			require.NoError(t, db.Accounts.View(func(tx Tx) error {
				approved, err := Posts(tx).List(func(p *accounts.CommunityPost) bool { return p.IsApproved })
				require.NoError(t, err)
				assert.Len(t, approved, 2)
				n, err := Posts(tx).Count(nil)
				require.NoError(t, err)
				assert.Equal(t, 3, n)
				return nil
			}))
		})
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	for name, db := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			boom := errors.New("boom")
			err := db.Accounts.Update(func(tx Tx) error {
				if err := Posts(tx).Put(&accounts.CommunityPost{ID: "p1"}); err != nil {
					return err
				}
				return boom
			})
			require.ErrorIs(t, err, boom)
			err = db.Accounts.View(func(tx Tx) error {
				_, err := Posts(tx).Get("p1")
				return err
			})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSettingsDefaultAndRoundTrip(t *testing.T) {
	for name, db := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			def := accounts.DefaultSettings(true)
			require.NoError(t, db.System.View(func(tx Tx) error {
				s, err := GetSettings(tx, def)
				require.NoError(t, err)
				assert.Equal(t, def, s)
				return nil
			}))
			changed := def
			changed.ExpertRegistrationOpen = false
			require.NoError(t, db.System.Update(func(tx Tx) error { return PutSettings(tx, changed) }))
			require.NoError(t, db.System.View(func(tx Tx) error {
				s, err := GetSettings(tx, def)
				require.NoError(t, err)
				assert.False(t, s.ExpertRegistrationOpen)
				assert.False(t, s.UpdatedAt.IsZero())
				return nil
			}))
		})
	}
}

func TestUnknownBucket(t *testing.T) {
	for name, db := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			err := db.System.View(func(tx Tx) error {
				_, err := tx.Get(BucketUsers, "x")
				return err
			})
			assert.Error(t, err)
			assert.False(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestBoltReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(DriverBolt, dir)
	require.NoError(t, err)
	require.NoError(t, db.Accounts.Update(func(tx Tx) error {
		return Users(tx).Create(newUser("u1", "keep@example.com", "keep"))
	}))
	require.NoError(t, db.Close())

	assert.FileExists(t, filepath.Join(dir, "user_management.db"))
	assert.FileExists(t, filepath.Join(dir, "default.db"))

	db, err = Open(DriverBolt, dir)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Accounts.View(func(tx Tx) error {
		_, err := tx.Get(BucketUsersByUsername, "keep")
		return err
	}))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("postgres", t.TempDir())
	assert.Error(t, err)
}
