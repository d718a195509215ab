package phi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fusehealth/commerce-api/internal/platform/auth"
)

// MaskMiddleware rewrites JSON responses for impersonation sessions,
// replacing values of known PHI keys with redaction placeholders. Normal
// sessions pass through untouched.
func MaskMiddleware(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !auth.IsImpersonation(c.Request().Context()) {
				return next(c)
			}

			res := c.Response()
			buf := &bufferingWriter{ResponseWriter: res.Writer, status: http.StatusOK}
			res.Writer = buf

			err := next(c)
			res.Writer = buf.ResponseWriter

			if err != nil {
				return err
			}

			body := buf.buf.Bytes()
			contentType := res.Header().Get(echo.HeaderContentType)
			if len(body) > 0 && strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
				if masked, ok := maskJSON(body); ok {
					body = masked
				} else {
					logger.Warn().
						Str("path", c.Request().URL.Path).
						Msg("response body is not valid JSON, skipping PHI masking")
				}
			}

			// The echo Response was committed against the buffer, so the
			// real writer gets the captured status and body directly.
			res.Header().Del(echo.HeaderContentLength)
			buf.ResponseWriter.WriteHeader(buf.status)
			_, werr := buf.ResponseWriter.Write(body)
			return werr
		}
	}
}

// maskJSON decodes body, masks PHI keys in the tree, and re-encodes. The
// second return is false when the body was not valid JSON.
func maskJSON(body []byte) ([]byte, bool) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false
	}

	masked := MaskValue(doc)

	out, err := json.Marshal(masked)
	if err != nil {
		return nil, false
	}
	return out, true
}

// MaskValue recursively walks a decoded JSON value and replaces the values of
// masked keys. Arrays and nested objects are traversed; non-container values
// are returned unchanged.
func MaskValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, child := range val {
			if IsMaskedKey(k) {
				val[k] = placeholderFor(k, child)
				continue
			}
			val[k] = MaskValue(child)
		}
		return val
	case []interface{}:
		for i, child := range val {
			val[i] = MaskValue(child)
		}
		return val
	default:
		return v
	}
}

// placeholderFor picks a redaction value that keeps the field's rough shape:
// dates stay parseable, nested address objects are masked field-by-field,
// null stays null.
func placeholderFor(key string, original interface{}) interface{} {
	if original == nil {
		return nil
	}
	if dateKeys[key] {
		return RedactedDate
	}
	// Address-style keys may hold structured objects; mask each leaf so the
	// portal's address form still renders.
	if m, ok := original.(map[string]interface{}); ok {
		for k := range m {
			m[k] = RedactedPlaceholder
		}
		return m
	}
	if arr, ok := original.([]interface{}); ok {
		for i := range arr {
			arr[i] = RedactedPlaceholder
		}
		return arr
	}
	return RedactedPlaceholder
}

// bufferingWriter captures the response so it can be rewritten before the
// client sees it.
type bufferingWriter struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *bufferingWriter) WriteHeader(status int) {
	w.status = status
}

func (w *bufferingWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *bufferingWriter) Flush() {
	// buffered until the middleware releases the body
}

func (w *bufferingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.ResponseWriter.(http.Hijacker).Hijack()
}
