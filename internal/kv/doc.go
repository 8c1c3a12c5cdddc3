// Package kv defines the flat string key-value contract that encrypted
// preference stores are layered on, and the backends implementing it.
//
// # Contract
//
//   - Store: point reads (Get, Contains), enumeration (All), an Editor for
//     batched writes, and change listeners.
//   - Editor: stages PutString, Remove and Clear. Commit applies the batch
//     synchronously and returns an error on failure; Apply runs the same commit
//     on its own goroutine and only logs failures.
//   - Provider: opens a Store per Namespace. Opening the same namespace twice
//     returns handles that share data and listeners.
//
// A batch is applied as: clear (if staged), then every staged key in staging
// order, where the last operation staged for a key wins. After a successful
// commit every listener of the namespace is called once per staged key, on the
// committing goroutine. Clear alone does not notify.
//
// # Backends
//
//   - MemoryProvider: process memory, with fault hooks for tests.
//   - SQLiteProvider: one preferences table keyed by (namespace, key).
//     Driver "sqlite" is modernc.org/sqlite, "sqlite3" is mattn/go-sqlite3.
//   - FileProvider: one TOML document per namespace, replaced atomically on
//     commit. The file permission is the namespace Mode.
//   - RedisProvider: one hash per namespace, committed with MULTI/EXEC.
//
// # Namespaces
//
// A Namespace is a name plus a Mode. The mode is part of the identity
// returned by ID, so the same name opened with two modes gives two stores.
package kv
