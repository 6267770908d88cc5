// Package server holds configuration for the HTTP surface.
package server
