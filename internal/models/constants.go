package models

// Person lifecycle.
const (
	PersonPending   = "pending"
	PersonConfirmed = "confirmed"
	PersonActive    = "active"
	PersonArchived  = "archived"
)

// Match lifecycle.
const (
	MatchProposed = "proposed"
	MatchAccepted = "accepted"
	MatchDeclined = "declined"
	MatchExpired  = "expired"
)

// Booking lifecycle.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
)

// Verification channels.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// Delivery task lifecycle (outbox worker).
const (
	DeliveryPending   = "pending"
	DeliveryRetry     = "retry"
	DeliveryCompleted = "completed"
	DeliveryFailed    = "failed"
)

// Funnel event types.
const (
	EventPageView         = "page_view"
	EventWizardStep       = "wizard_step"
	EventWizardSubmit     = "wizard_submit"
	EventVerifyStart      = "verify_start"
	EventVerified         = "verified"
	EventMatchProposed    = "match_proposed"
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
)

// FunnelStages is the canonical stage ordering used by the admin stats report.
var FunnelStages = []string{
	EventPageView,
	EventWizardStep,
	EventWizardSubmit,
	EventVerifyStart,
	EventVerified,
	EventMatchProposed,
	EventBookingCreated,
	EventBookingConfirmed,
}

const (
	// DefaultSessionTTL is how long a wizard draft lives in Redis, in seconds.
	DefaultSessionTTL = 24 * 60 * 60

	// VerificationCodeTTL is the lifetime of a verification code, in seconds.
	VerificationCodeTTL = 10 * 60

	// VerificationMaxAttempts caps code check attempts per verification.
	VerificationMaxAttempts = 5

	// VerificationResendLimit caps code sends per contact per window.
	VerificationResendLimit = 3

	// VerificationResendWindow is the resend limit window, in seconds.
	VerificationResendWindow = 10 * 60

	// DefaultProposalTTL is how long a proposed match waits for an answer
	// before the sweeper expires it, in seconds.
	DefaultProposalTTL = 72 * 60 * 60

	// WorkerQueueSize is the in-memory delivery queue capacity.
	WorkerQueueSize = 1000

	// DefaultPageSize is the page size for admin listings.
	DefaultPageSize = 50
)
