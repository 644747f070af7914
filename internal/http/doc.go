// Package http exposes the calendar services as a JSON API under /api.
//
// Routes are registered on a gorilla/mux router in router.go. Registration,
// login and the health probe are public; every other route requires a session
// token supplied as the session_token cookie or an Authorization: Bearer
// header. Errors share one envelope:
//
//	{"error_code": "...", "message": "...", "errors": {"field": "..."}}
//
// Scheduling conflicts answer 409 with the clashing commitments under
// "conflicts". A participation request that matches the current state answers
// 400 with error_code NO_CHANGE.
//
// Request and response DTOs live alongside their handlers.
package http
