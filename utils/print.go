package utils

import (
	"net/http"
	"sort"
	"strings"

	chi "github.com/go-chi/chi/v5"
)

// Routes lists the routes registered on r as "METHOD /path", sorted by path.
func Routes(r chi.Routes) []string {
	var routes []string
	walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+strings.Replace(route, "/*/", "/", -1))
		return nil
	}
	if err := chi.Walk(r, walkFunc); err != nil {
		return nil
	}
	sort.Slice(routes, func(i, j int) bool {
		pi := routes[i][strings.IndexByte(routes[i], ' ')+1:]
		pj := routes[j][strings.IndexByte(routes[j], ' ')+1:]
		if pi != pj {
			return pi < pj
		}
		return routes[i] < routes[j]
	})
	return routes
}
