// Package model defines shared data types used across the chat broker.
//
// Conventions:
//   - Connection IDs: opaque strings minted from UUIDs at upgrade time
//   - Message IDs: int64, strictly increasing for the process lifetime
//   - Timestamps: time.Time internally, RFC 3339 on the wire
//
// External views (UserView, MessageView) are value snapshots; internal
// structs with tracking state never leave their owning store.
package model
