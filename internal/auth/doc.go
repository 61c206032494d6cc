// Package auth issues and verifies viewer and operator tokens for the scoreboard API.
//
// Tokens are HS256 JWTs carrying a subject and a role. Roles map statically
// to permissions; there is no user database.
package auth
