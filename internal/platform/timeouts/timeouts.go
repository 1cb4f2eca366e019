// Package timeouts defines shared timeout constants used across the console,
// its CLI and the mock backend.
package timeouts

import "time"

// APIRequest caps a single backend call made through the API client.
const APIRequest = 10 * time.Second

// Login caps the backend login call, which may hash passwords server side.
const Login = 15 * time.Second

// Logout caps the best-effort backend logout call.
const Logout = 5 * time.Second

// UnauthorizedRedirect is how long the user can read the expiry notice
// before being sent back to the login screen.
const UnauthorizedRedirect = 1500 * time.Millisecond

// StoreOpen caps the wait for the credential store file lock.
const StoreOpen = time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
