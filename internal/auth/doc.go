package auth

// Package auth provides credential hashing and JWT issuance.
//
// Passwords are stored as crypt(3) strings (sha512-crypt for new hashes).
// Login hands out an access/refresh pair; protected endpoints accept only
// access tokens, and the refresh endpoint accepts only refresh tokens.
