// Package namecache caches the decryption of stored names so that bulk
// enumeration and change notifications do not decrypt the same name twice
// within a configurable window.
package namecache
