// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"time"

	groupstore "github.com/dalemusser/mentorhub/internal/app/store/groups"
	orgstore "github.com/dalemusser/mentorhub/internal/app/store/organizations"
	userstore "github.com/dalemusser/mentorhub/internal/app/store/users"
	"github.com/dalemusser/mentorhub/internal/app/system/workers"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// membershipSync is started here and stopped in Shutdown. BuildHandler hands
// it to the features that kick reconciliation after roster changes.
var membershipSync *workers.MembershipSync

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. MentorHub
// promotes (or reports a missing) platform operator and starts the
// default-group membership synchronizer.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if appCfg.OperatorEmail != "" {
		if err := ensureOperator(ctx, deps, appCfg.OperatorEmail, logger); err != nil {
			return err
		}
	}

	membershipSync = workers.NewMembershipSync(
		userstore.New(deps.MongoDatabase, logger),
		groupstore.New(deps.MongoDatabase, logger),
		orgstore.New(deps.MongoDatabase),
		logger,
		appCfg.SyncInterval,
	)
	membershipSync.Start()
	return nil
}

// ensureOperator promotes the user with the configured email to platform
// operator, creating a disabled-login placeholder when no such user exists.
// The placeholder has no password hash; an operator signs in only after one
// is set out of band.
func ensureOperator(ctx context.Context, deps DBDeps, email string, logger *zap.Logger) error {
	folded := text.Fold(email)
	users := deps.MongoDatabase.Collection("users")

	var existing models.User
	err := users.FindOne(ctx, bson.M{"email": folded}).Decode(&existing)
	switch {
	case err == nil:
		if existing.Role == models.RolePlatformOperator {
			return nil
		}
		_, err := users.UpdateByID(ctx, existing.ID, bson.M{
			"$set":   bson.M{"role": models.RolePlatformOperator, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"organization_id": ""},
		})
		if err != nil {
			return err
		}
		logger.Info("promoted existing user to platform operator",
			zap.String("email", folded))
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		now := time.Now().UTC()
		u := models.User{
			FullName:   "Platform Operator",
			FullNameCI: text.Fold("Platform Operator"),
			Email:      folded,
			Role:       models.RolePlatformOperator,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if _, err := users.InsertOne(ctx, u); err != nil {
			return err
		}
		logger.Info("created platform operator account",
			zap.String("email", folded))
		return nil
	default:
		return err
	}
}
