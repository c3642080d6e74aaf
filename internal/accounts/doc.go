// Package accounts holds the user-management domain: users and their role
// profiles, consultation slots and bookings, the community board with its
// points ledger, feedback, system metrics and password reset tokens.
//
// The types here are plain records; persistence lives in internal/store and
// the operations that combine them live in internal/service.
package accounts
