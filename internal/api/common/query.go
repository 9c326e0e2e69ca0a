package common

import (
	"fmt"
	"net/http"
	"strconv"
)

// QueryString returns the named query parameter, or fallback when it is absent.
// A parameter present with an empty value is returned as the empty string.
func QueryString(r *http.Request, name, fallback string) string {
	values := r.URL.Query()
	if !values.Has(name) {
		return fallback
	}
	return values.Get(name)
}

// QueryInt parses the named query parameter as an integer, or returns fallback when it is absent
func QueryInt(r *http.Request, name string, fallback int) (int, error) {
	values := r.URL.Query()
	if !values.Has(name) {
		return fallback, nil
	}
	n, err := strconv.Atoi(values.Get(name))
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s", name)
	}
	return n, nil
}
