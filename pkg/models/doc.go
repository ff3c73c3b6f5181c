// Package models defines the persisted records of the Whisper GRC core:
// organisations (tenants), the user accounts provisioned inside them and
// the audit events written when state changes.
//
// A user account belongs to exactly one organisation and never moves. Its
// [Role] is the only input to permission decisions; see the auth package.
package models
