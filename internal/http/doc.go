// Package http provides HTTP handlers and middleware for the booking API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}. Response:
//     {"token","expires_at","actor"} with the token also surfaced via the
//     `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /sessions/current: revokes the current session token extracted from
//     the Authorization header or session cookie. Returns 204 No Content.
//   - DELETE /sessions/{token}: administrator revocation of an arbitrary token.
//   - GET /resources, POST /resources, GET/PUT/DELETE /resources/{id}: catalog
//     endpoints exchanging the `resourceDTO` payload defined in
//     resource_handler.go. Listing accepts an optional `type` query parameter;
//     mutations require admin privileges.
//   - GET /resources/{id}/availability?date=YYYY-MM-DD[&period=name]: slot
//     availability for one resource, either the whole day or a single period.
//   - GET /availability/rooms and GET /availability/devices with
//     `period` and `date` query parameters: aggregate usage across a resource
//     class for one slot.
//   - GET /periods: the fixed daily booking grid.
//   - POST /reservations: books one slot. POST /reservations/batch: books
//     several slots of one resource in a single action, reporting per-slot
//     outcomes. GET /reservations lists reservations (non-admin callers see
//     only their own). PATCH/DELETE /reservations/{id} edit or remove one
//     reservation, and POST /reservations/{id}/approve|reject|cancel drive the
//     lifecycle.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
