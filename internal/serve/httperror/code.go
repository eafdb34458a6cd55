package httperror

const (
	Code400_0 = "400_0" // Invalid request body.
	Code400_1 = "400_1" // Submitted form data failed validation.
	Code400_2 = "400_2" // Invalid query parameters.
	Code401_0 = "401_0" // Not authenticated.
	Code403_0 = "403_0" // Missing the superadmin capability.
	Code404_0 = "404_0" // Resource not found.
	Code409_0 = "409_0" // Entity is not in a convertible status.
	Code409_1 = "409_1" // A conversion is already in progress.
	Code409_2 = "409_2" // Domain allocation exhausted.
	Code409_3 = "409_3" // Tenant database is in a conflicting state.
	Code409_4 = "409_4" // Unique value already taken.
	Code409_5 = "409_5" // Subscription plan is in use.
	Code409_6 = "409_6" // Invalid status transition.
	Code409_7 = "409_7" // A subscription sweep is already running.
	Code429_0 = "429_0" // Too many requests.
	Code500_0 = "500_0" // An internal error occurred while processing this request.
	Code500_1 = "500_1" // Tenant database migration failed.
	Code500_2 = "500_2" // Tenant reference data seed failed.
	Code500_3 = "500_3" // Conversion failed at a saga step.
)
