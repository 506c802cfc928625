package endpoints

import (
	"net/http"
	"strings"
)

func ExtractTokenFromHeaders(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return token
}
