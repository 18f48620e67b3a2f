// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package logging

// Redaction helpers for credential material. OAuth client secrets and bearer
// tokens must never appear in log output, even at debug level.

// RedactToken masks a token, showing only the first and last 4 characters.
// Example: "USptap0ulQY3vpWTaCEIYP8Za7EmgVkPbQ" -> "USpt...kPbQ"
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// RedactClientID masks an OAuth client ID for log output. Client IDs are
// less sensitive than secrets but still identify the credential pair, which
// matters when rotation between pairs is being diagnosed.
func RedactClientID(id string) string {
	return RedactToken(id)
}
