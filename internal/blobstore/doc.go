// Package blobstore keeps uploaded clips locally so they can be played and
// previewed before the backend has persisted them.
package blobstore
