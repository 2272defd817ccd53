package server

import (
	"net/http"
	"net/url"
	"strings"
)

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	redirectSuccess(w, r, withQuery(path, "error", errorMsg))
}

// redirectToLogin sends the browser to the login entry point, remembering
// where it wanted to go.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	redirectSuccess(w, r, loginPath(r.URL.RequestURI()))
}

func loginPath(next string) string {
	if next = safeNext(next); next == RouteDashboard {
		return RouteLogin
	}
	return withQuery(RouteLogin, "next", next)
}

func withQuery(path, key, value string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + key + "=" + url.QueryEscape(value)
}

// safeNext only allows local absolute paths as post-login targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return RouteDashboard
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" || u.Scheme != "" {
		return RouteDashboard
	}
	if next == RouteLogin || strings.HasPrefix(next, RouteLogin+"?") || next == RouteIndex {
		return RouteDashboard
	}
	return next
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func wantsJSON(r *http.Request) bool {
	return isHTMXRequest(r) || strings.Contains(r.Header.Get("Accept"), "application/json")
}
