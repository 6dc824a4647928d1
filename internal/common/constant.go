// Package common contains shared constants and sentinel errors used across
// boardsync components.
package common

// AuthTokenHeaderName is the HTTP header used to carry the board-session
// token on API requests and the websocket upgrade.
const AuthTokenHeaderName = "X-Board-Token"
