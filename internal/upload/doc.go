// Package upload attaches recordings to prayers: local first, then persisted
// in the background.
package upload
