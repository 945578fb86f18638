// Package services defines the [SourceService] and [TargetService] interfaces
// for the two task-management platforms and implements them for ClickUp and
// Monday.com.
//
// # Service Interfaces
//
// [SourceService] is read-only access to the platform tasks come from.
// [TargetService] is write access to the board-based platform items land on.
// The orchestration layer depends only on these interfaces, so tests swap in
// doubles without touching HTTP.
//
// # ClickUp Implementation
//
// [ClickUpService] talks to the v2 REST API with a personal or OAuth2 access
// token in the Authorization header. Task listings are paginated; GetTasks
// follows pages until the API reports last_page.
//
// # Monday Implementation
//
// [MondayService] talks to the GraphQL endpoint. Every query requests the
// complexity block, and the reported point spend is fed into the service's
// [ratelimit.Governor] so the client slows down before the account budget is
// exhausted. File uploads go to the dedicated multipart endpoint.
//
// # Throttling
//
// Both clients bracket every remote call the same way: wait on the governor,
// run the request through the exponential-backoff wrapper, then record the
// request against the sliding window. HTTP 429 and Monday ComplexityException
// responses surface as [shared.ErrRateLimited], which the backoff layer
// always retries.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrMissingCredentials] : required credential key absent
//   - [shared.ErrAPIRequest] : HTTP or GraphQL request failed
//   - [shared.ErrRateLimited] : quota or complexity budget exceeded
//   - [shared.ErrListNotFound] / [shared.ErrBoardNotFound] : lookup misses
package services
