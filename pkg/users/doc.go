// Package users administers the identity service's user directory on behalf of
// an authenticated administrator.
//
// Reads are cached in an expiring LRU keyed by user ID. Updates and deletes
// invalidate the affected user and the cached list.
package users
