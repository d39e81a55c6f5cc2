// Package tokenstore persists the session's access and refresh tokens.
//
// Two string values live under the fixed keys AccessTokenKey and RefreshTokenKey.
// Backends:
//
//   - file: a 0600 JSON file, $HOME/.config/portal/tokens.json by default; supports Watch
//   - redis: shared across processes, keys prefixed with RedisPrefix
//   - sqlite / postgres: a name/value table
//   - memory: tests and throwaway sessions
//
// Only session.Manager writes these keys.
package tokenstore
