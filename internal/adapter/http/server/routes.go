package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/borauni/ride-dispatch/internal/domain/types"
)

// setupRoutes wires every endpoint of the dispatch service.
func (a *API) setupRoutes() {
	// System
	a.mux.HandleFunc("/health", a.routes.health.HealthCheck)
	a.mux.Handle("/metrics", promhttp.Handler())
	a.mux.HandleFunc("/swagger/", httpSwagger.Handler())

	// Ride lifecycle
	a.mux.Handle("POST /rides", a.m.RequireRoles(a.routes.ride.CreateRide, types.RiderRole))                            // Open a ride request
	a.mux.Handle("POST /rides/{ride_id}/accept", a.m.RequireRoles(a.routes.ride.AcceptRide, types.DriverRole))          // Claim a requested ride
	a.mux.Handle("POST /rides/{ride_id}/start", a.m.RequireRoles(a.routes.ride.StartRide, types.DriverRole))            // Begin an accepted ride
	a.mux.Handle("POST /rides/{ride_id}/complete", a.m.RequireRoles(a.routes.ride.CompleteRide, types.DriverRole))      // Finish an in-progress ride
	a.mux.Handle("POST /rides/{ride_id}/cancel", a.m.RequireRoles(a.routes.ride.CancelRide, types.RiderRole, types.DriverRole)) // Cancel before start
	a.mux.Handle("POST /rides/{ride_id}/rating", a.m.RequireRoles(a.routes.ride.RateRide, types.RiderRole))             // Rate a completed ride

	// Ride queries
	a.mux.Handle("GET /rides/active", a.m.RequireRoles(a.routes.ride.ActiveRide, types.RiderRole, types.DriverRole))
	a.mux.Handle("GET /rides/{ride_id}", a.m.RequireRoles(a.routes.ride.GetRide, types.RiderRole, types.DriverRole))
	a.mux.Handle("GET /rides/{ride_id}/events", a.m.RequireRoles(a.routes.ride.ListRideEvents, types.RiderRole, types.DriverRole))

	// WebSocket attach
	a.mux.Handle("GET /ws/drivers/{driver_id}", a.m.RequireRoles(a.routes.ws.DriverWS, types.DriverRole))
	a.mux.Handle("GET /ws/riders/{rider_id}", a.m.RequireRoles(a.routes.ws.RiderWS, types.RiderRole))
}
