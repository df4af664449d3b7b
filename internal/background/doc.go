// Package background owns the application's single shared background image
// reference.
//
// A Store holds the current Snapshot in memory, restores it from a
// store.KeyValue on Initialize, and persists every change under Key. Set
// updates memory and notifies subscribers before it returns; the write to
// durable storage finishes later and is reported through the returned
// Persist handle. A failed write is never rolled back or retried.
//
// Wrapper renders child content over the current image, or bare when no
// image is set.
package background
