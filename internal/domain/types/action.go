package types

// Log action names, attached to the context via the logger wrapper.
const (
	ActionCreateRide     = "create_ride"
	ActionAcceptRide     = "accept_ride"
	ActionStartRide      = "start_ride"
	ActionCompleteRide   = "complete_ride"
	ActionCancelRide     = "cancel_ride"
	ActionRateRide       = "rate_ride"
	ActionExpireSweep    = "expire_sweep"
	ActionPublishEvent   = "publish_dispatch_event"
	ActionDeliverEvent   = "deliver_dispatch_event"
	ActionSessionAttach  = "session_attach"
	ActionSessionDetach  = "session_detach"
	ActionDatabaseFailed = "database_transaction_failed"
)
