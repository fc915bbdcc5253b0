package controllers

import (
	"net/http"
	"slices"
)

// AllowedOrigins accepts upgrade requests without an Origin header or from
// one of origins; "*" allows every origin.
func AllowedOrigins(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
	}
}
