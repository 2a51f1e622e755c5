// SPDX-License-Identifier: MPL-2.0

// Package cache implements the local content cache used when staging remote
// workflow inputs.
//
// Blobs are stored under blobs/<sig[:2]>/<sig> inside the cache directory
// and described by a JSON index (index.json). A blob is always written to a
// temporary file and renamed into place, so a reader never observes partial
// content. Index updates take an in-process mutex plus an exclusive flock on
// index.lock, and re-read the on-disk index before writing so that several
// launcher processes sharing one cache merge their updates.
package cache
