package llm

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// IsRateLimitError reports whether err is a quota or throttling response
// from either backend.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"resourceexhausted", "resource_exhausted", "429", "rate limit", "quota"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
