// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization is the tenant boundary. Every chat document carries an
// organization id; cross-organization reads are limited to platform
// operators.
type Organization struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	NameCI    string             `bson:"name_ci"` // ← always stored
	TimeZone  string             `bson:"time_zone"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}
