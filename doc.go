// Package sloth implements a small web application with passwordless,
// email-code authentication backed by a key-value store.
//
// The flow is the following:
//
//  1. A visitor submits their email. RequestCode emails them a one-time
//     entry code and stores its signed form on the account record.
//  2. The visitor submits the code. StartSession verifies it against the
//     stored login token and mints a session/refresh pair: two opaque
//     secrets persisted on the account, each wrapped in a signed, expiring
//     token handed to the client as an HttpOnly cookie.
//  3. Every request verifies the session token cryptographically and against
//     the stored secret. An expired session with a still-valid refresh token
//     is replaced silently; anything else tears the session down.
//
// A new login overwrites the stored secrets, so each account has at most one
// active session. Accounts are keyed by email with a numeric secondary index
// and a singleton counter record, all living in a kv.Store whose atomic
// multi-key commit keeps id assignment race-free.
package sloth
