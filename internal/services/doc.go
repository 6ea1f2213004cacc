// Package services implements the client side of the streaming authorization service.
//
// # Signer Interface
//
// [Signer] is the narrow boundary the playback session manager depends on.
// It signs, caches, refreshes and force-refreshes per-track streaming tokens and builds playback URLs around them.
//
// # Signing Service Implementation
//
// [SigningService] talks JSON over HTTP:
//   - POST /v1/stream/sign {"track_id"} → {"token"}
//   - POST /v1/stream/refresh {"track_id", "old_token"} → {"token"}
//
// Playback URLs have the form {stream_base}/v1/stream/{track}/master.m3u8?token={token}.
//
// When client credentials are configured, the [oauth2] client-credentials transport authenticates every request
// and renews its own access token.
//
// # Token Cache
//
// Issued tokens are cached through [TokenStore]. [MemoryTokenStore] keeps them for the life of the process;
// repositories.TokenStoreAdapter persists them in SQLite.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrSigningFailed] : signing exhausted its attempts or was rejected
//   - [shared.ErrRefreshFailed] : the refresh exchange failed
//   - [shared.ErrNoRefreshToken] : a refresh was requested without a cached token
//   - [shared.ErrAPIRequest] : transport failure, retried by [SigningService.SignedURLWithRetry]
//
// Non-2xx answers are reported as [*StatusError]; 5xx and 429 are temporary.
package services
