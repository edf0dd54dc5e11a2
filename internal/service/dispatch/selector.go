package dispatch

import (
	"context"
	"sort"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// NearestSelector is the default candidate policy: every online driver,
// ordered by straight-line distance to the ride origin, ties broken by
// driver id ascending so the ordering is deterministic.
type NearestSelector struct{}

func NewNearestSelector() *NearestSelector {
	return &NearestSelector{}
}

func (s *NearestSelector) Select(_ context.Context, origin models.Location, drivers []models.OnlineDriver) []uuid.UUID {
	type candidate struct {
		id   uuid.UUID
		dist float64
	}

	candidates := make([]candidate, 0, len(drivers))
	for _, d := range drivers {
		if d.Location == nil {
			continue
		}
		candidates = append(candidates, candidate{
			id:   d.DriverID,
			dist: distanceKm(origin, *d.Location),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].id.String() < candidates[j].id.String()
	})

	ordered := make([]uuid.UUID, len(candidates))
	for i, c := range candidates {
		ordered[i] = c.id
	}
	return ordered
}
