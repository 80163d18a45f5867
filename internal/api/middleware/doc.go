// Package middleware provides HTTP middleware for the tracker API.
package middleware
