package http

import (
	"net/http"

	twilioclient "github.com/twilio/twilio-go/client"
)

// signatureMiddleware rejects webhook requests whose X-Twilio-Signature
// does not verify against the auth token. publicURL, when set, replaces
// the scheme and host seen by the server, since behind a proxy the signed
// URL is the external one.
func signatureMiddleware(authToken, publicURL string) func(http.Handler) http.Handler {
	validator := twilioclient.NewRequestValidator(authToken)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}

			params := make(map[string]string, len(r.PostForm))
			for key, values := range r.PostForm {
				if len(values) > 0 {
					params[key] = values[0]
				}
			}

			url := requestURL(r, publicURL)
			if !validator.Validate(url, params, r.Header.Get("X-Twilio-Signature")) {
				http.Error(w, "invalid signature", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestURL(r *http.Request, publicURL string) string {
	if publicURL != "" {
		return publicURL + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
