// Package utils provides shared utility functions and constants
package utils

// ContextKeyNavigator is the key used to store the active navigator in the echo context
const ContextKeyNavigator = "navigator"

// ContextKeyCSRF is the key the CSRF middleware stores its token under
const ContextKeyCSRF = "csrf"

// CSRFCookieName is the name of the CSRF cookie
const CSRFCookieName = "gallery_csrf"
