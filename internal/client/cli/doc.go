// Package cli provides the interactive vaxsync guardian client.
//
// NewApp wires configuration, the local database, the remote client, the
// network monitor and the sync coordinator. App.Run starts connectivity
// probing and background sync, then runs a REPL until the user exits.
// Reads are served from the local cache, so every command except refresh
// works offline; writes are queued and delivered once the device is online.
package cli
