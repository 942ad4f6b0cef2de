// Package backend talks to the school management API and to object storage.
package backend
