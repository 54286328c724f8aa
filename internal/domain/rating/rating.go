package rating

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
)

const maxCommentLength = 500

// Rating is one party's post-trip score of the other.
type Rating struct {
	id        uuid.UUID
	rideID    uuid.UUID
	raterID   uuid.UUID
	rateeID   uuid.UUID
	raterRole ride.Role
	score     int
	comment   string
	createdAt time.Time
}

// NewRating creates a rating for a completed ride.
func NewRating(b *ride.Booking, raterID uuid.UUID, score int, comment string) (*Rating, error) {
	if b.Status() != ride.StatusCompleted {
		return nil, fmt.Errorf("only completed rides can be rated")
	}
	role, ok := b.RoleOf(raterID)
	if !ok {
		return nil, fmt.Errorf("only the rider or the driver may rate this ride")
	}
	if score < 1 || score > 5 {
		return nil, fmt.Errorf("score must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxCommentLength {
		return nil, fmt.Errorf("comment must be at most %d characters", maxCommentLength)
	}

	ratee := b.RiderID()
	if role == ride.RoleRider {
		ratee = *b.DriverID()
	}

	return &Rating{
		id:        uuid.New(),
		rideID:    b.ID(),
		raterID:   raterID,
		rateeID:   ratee,
		raterRole: role,
		score:     score,
		comment:   comment,
		createdAt: time.Now().UTC(),
	}, nil
}

// Reconstruct rebuilds a Rating from persistence.
func Reconstruct(id, rideID, raterID, rateeID uuid.UUID, raterRole ride.Role, score int, comment string, createdAt time.Time) *Rating {
	return &Rating{
		id:        id,
		rideID:    rideID,
		raterID:   raterID,
		rateeID:   rateeID,
		raterRole: raterRole,
		score:     score,
		comment:   comment,
		createdAt: createdAt,
	}
}

// Getters.
func (r *Rating) ID() uuid.UUID        { return r.id }
func (r *Rating) RideID() uuid.UUID    { return r.rideID }
func (r *Rating) RaterID() uuid.UUID   { return r.raterID }
func (r *Rating) RateeID() uuid.UUID   { return r.rateeID }
func (r *Rating) RaterRole() ride.Role { return r.raterRole }
func (r *Rating) Score() int           { return r.score }
func (r *Rating) Comment() string      { return r.comment }
func (r *Rating) CreatedAt() time.Time { return r.createdAt }
