// Package tokenstore provides persistent storage for the session credential pair.
//
// Supports four storage backends with different security and deployment tradeoffs:
//   - File: Local JSON file with atomic writes, a lock file and secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Env: Read-only environment variable access (requires external secret management)
//   - Memory: Process-local storage for ephemeral sessions
//
// Token refresh and logout require writable storage (file, keyring or memory).
package tokenstore
