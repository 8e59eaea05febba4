// Package user keeps a lightweight record of every user who interacts with
// the gate so operators can see who reached it. Verification outcomes are not
// stored.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_channel_gate_bot/internal/logging"
)

type userCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Profile is the subset of a Telegram user that is persisted.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
}

// Registrar upserts users and refreshes their last-seen timestamp on every
// interaction.
type Registrar struct {
	users  userCollection
	logger *logrus.Entry
	now    func() time.Time
}

// NewRegistrar constructs a Registrar for the provided users collection.
func NewRegistrar(users userCollection, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// EnsureUser upserts the user record and updates last_seen_at/updated_at on
// every call. It reports whether a new document was created.
func (r *Registrar) EnsureUser(ctx context.Context, profile Profile) (bool, error) {
	if r == nil || r.users == nil {
		return false, errors.New("user registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if profile.ID == 0 {
		return false, errors.New("user id is required")
	}

	now := r.now().UTC().Truncate(time.Millisecond)

	set := bson.M{
		"updated_at":   now,
		"last_seen_at": now,
	}
	if username := strings.TrimSpace(profile.Username); username != "" {
		set["username"] = username
	}
	if firstName := strings.TrimSpace(profile.FirstName); firstName != "" {
		set["first_name"] = firstName
	}

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"user_id":    profile.ID,
			"created_at": now,
		},
	}

	result, err := r.users.UpdateOne(ctx,
		bson.M{"user_id": profile.ID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}

	created := result != nil && result.UpsertedCount > 0
	if created {
		r.logger.WithFields(logging.Fields{
			"event":   "user_registered",
			"user_id": profile.ID,
		}).Info("registered new user")
		return true, nil
	}

	r.logger.WithFields(logging.Fields{
		"event":   "user_seen",
		"user_id": profile.ID,
	}).Debug("updated user last seen")

	return false, nil
}
