package middleware

import (
	"io"
	"net/http"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pterodactyl/scribe/access"
	"github.com/pterodactyl/scribe/config"
	"github.com/pterodactyl/scribe/filesystem"
)

// AttachRequestID attaches a unique ID to the incoming HTTP request so that any
// errors that are generated or returned to the client will include this reference
// allowing for an easier time identifying the specific request that failed for
// the user.
func AttachRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Set("request_id", id)
		c.Set("logger", log.WithField("request_id", id))
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// AttachFilesystem attaches the root filesystem to the request context which
// allows routes to write files without reaching for global state.
func AttachFilesystem(fs *filesystem.Filesystem) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("filesystem", fs)
		c.Next()
	}
}

// CaptureAndAbort aborts the request and attaches the provided error to the gin
// context, so it can be reported properly. If the error is missing a stacktrace
// at the time it is called the stack will be attached.
func CaptureAndAbort(c *gin.Context, err error) {
	c.Abort()
	c.Error(errors.WithStackDepthIf(err, 1))
}

// CaptureErrors is custom handler function allowing for errors bubbled up by
// c.Error() to be returned in a standardized format with tracking UUIDs on them
// for easier log searching.
func CaptureErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		err := c.Errors.Last()
		if err == nil || err.Err == nil {
			return
		}

		status := http.StatusInternalServerError
		if c.Writer.Status() != 200 {
			status = c.Writer.Status()
		}
		if errors.Is(err.Err, io.EOF) || errors.Is(err.Err, io.ErrUnexpectedEOF) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "The data passed in the request was not in a parsable format. Please try again."})
			return
		}
		captured := NewError(err.Err)
		if status, msg := captured.asFilesystemError(); msg != "" {
			ExtractLogger(c).WithField("status", status).WithField("error", captured.Cause()).Debug("rejected filesystem request")
			c.AbortWithStatusJSON(status, gin.H{"error": msg, "request_id": c.Writer.Header().Get("X-Request-Id")})
			return
		}
		captured.Abort(c, status)
	}
}

// SetAccessControlHeaders sets the access request control headers on all of
// the requests.
func SetAccessControlHeaders() gin.HandlerFunc {
	cfg := config.Get()
	origins := cfg.AllowedOrigins
	header := cfg.TokenHeader

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Accept, Accept-Encoding, Cache-Control, Content-Type, Content-Length, Origin, X-Real-IP, "+header)

		// Maximum age allowable under Chromium v76 is 2 hours, so just use that since
		// anything higher will be ignored (even if other browsers do allow higher values).
		//
		// @see https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Access-Control-Max-Age#Directives
		c.Header("Access-Control-Max-Age", "7200")

		// Validate that the request origin is coming from an allowed origin. Because you
		// cannot set multiple values here we need to see if the origin is one of the ones
		// that we allow, and if so return it explicitly.
		origin := c.GetHeader("Origin")
		if len(origins) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else {
			for _, o := range origins {
				if o != "*" && o != origin {
					continue
				}
				c.Header("Access-Control-Allow-Origin", o)
				break
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequireAuthorization checks the token presented in the configured header
// against the guard. Requests failing that check are aborted with a 401 before
// any handler that could touch the disk runs.
func RequireAuthorization(guard *access.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		// We don't put this value outside this function since the header can be
		// changed through a configuration update and config.Get() returns a copy.
		header := config.Get().TokenHeader
		if !guard.Authorize(c.GetHeader(header)) {
			ExtractLogger(c).WithField("ip", c.ClientIP()).Debug("rejected request with missing or invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// LimitRequestBody caps the number of bytes that will be read from the request
// body. Reading past the limit fails with an error.
func LimitRequestBody() gin.HandlerFunc {
	limit := config.Get().Api.UploadLimit
	return func(c *gin.Context) {
		if limit > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// ExtractLogger pulls the logger out of the request context and returns it. By
// default this will include the request ID.
func ExtractLogger(c *gin.Context) *log.Entry {
	v, ok := c.Get("logger")
	if !ok {
		panic("middleware/middleware: cannot extract logger: not present in request context")
	}
	return v.(*log.Entry)
}

// ExtractFilesystem returns the root filesystem set on the request context.
func ExtractFilesystem(c *gin.Context) *filesystem.Filesystem {
	if v, ok := c.Get("filesystem"); ok {
		return v.(*filesystem.Filesystem)
	}
	panic("middleware/middleware: cannot extract filesystem: not present in context")
}
