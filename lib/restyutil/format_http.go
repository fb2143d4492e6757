package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/go-resty/resty/v2"
)

// InstrumentOutput receives formatted HTTP exchanges keyed by request id.
type InstrumentOutput interface {
	Write(id string, contents string)
}

const redacted = "<REDACTED>"

// headers and form fields whose values never end up in a dump
var (
	sensitiveHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}
	sensitiveFields  = []string{"password"}
)

// formatHeaders prints headers sorted by name so dumps diff cleanly.
func formatHeaders(headers http.Header) string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	slices.Sort(names)

	var out strings.Builder
	for _, name := range names {
		for _, value := range headers[name] {
			if slices.Contains(sensitiveHeaders, http.CanonicalHeaderKey(name)) {
				value = redacted
			}
			fmt.Fprintf(&out, "%s: %s\n", name, value)
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

// redactForm blanks sensitive fields of an urlencoded body, other bodies are
// returned as is.
func redactForm(contentType, body string) string {
	if !strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		return body
	}
	values, err := url.ParseQuery(body)
	if err != nil {
		return body
	}
	for _, field := range sensitiveFields {
		if values.Has(field) {
			values.Set(field, redacted)
		}
	}
	return values.Encode()
}

func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return "<NO BODY AVAILABLE>"
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	contents, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return redactForm(req.Header.Get("content-type"), string(contents))
}

const messageTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%d %s

%s

%s`

// FormatHttpMessage renders a full request/response exchange as text with
// credentials and cookies redacted.
func FormatHttpMessage(res *resty.Response) string {
	var requestHeaders http.Header
	if res.Request.RawRequest != nil {
		requestHeaders = res.Request.RawRequest.Header
	}

	responseUrl := res.Request.URL
	if res.RawResponse != nil {
		redirected, err := res.RawResponse.Location()
		if err == nil {
			responseUrl = redirected.String()
		}
	}

	return fmt.Sprintf(
		messageTemplate,
		res.Request.Method, res.Request.URL,
		formatHeaders(requestHeaders),
		formatRequestBody(res.Request.RawRequest),
		res.StatusCode(), responseUrl,
		formatHeaders(res.Header()),
		res.String(),
	)
}
