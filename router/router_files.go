package router

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/pterodactyl/scribe/filesystem"
	"github.com/pterodactyl/scribe/router/middleware"
)

type writeRequest struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

type writeFunc func(fs *filesystem.Filesystem, p string, r io.Reader) (*filesystem.Stat, error)

// Writes a file into the root directory, replacing any file that already exists
// at the path.
func postAgentEdit(c *gin.Context) {
	handleWrite(c, "ok", (*filesystem.Filesystem).Writefile)
}

// Creates a new file in the root directory. Fails if anything is already
// present at the path.
func postAgentCreate(c *gin.Context) {
	handleWrite(c, "created", (*filesystem.Filesystem).Create)
}

func handleWrite(c *gin.Context, status string, fn writeFunc) {
	b, err := io.ReadAll(c.Request.Body)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	var data writeRequest
	if err := json.Unmarshal(b, &data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": "The data passed in the request was not in a parsable format. Please try again.",
		})
		return
	}
	if data.FilePath == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "filePath required"})
		return
	}
	// A trailing separator names a directory, which would otherwise be cleaned away
	// and leave a file behind with the directory's name.
	if strings.HasSuffix(data.FilePath, "/") || strings.HasSuffix(data.FilePath, string(filepath.Separator)) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "filePath must name a file, not a directory"})
		return
	}
	if strings.ContainsRune(data.FilePath, 0) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "filePath contains invalid characters"})
		return
	}

	fs := middleware.ExtractFilesystem(c)
	logger := middleware.ExtractLogger(c).WithField("path", data.FilePath)

	st, err := fn(fs, data.FilePath, strings.NewReader(data.Content))
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}

	logger.WithField("size", st.Size()).WithField("mime", st.Mimetype).WithField("status", status).Info("wrote file to disk")
	c.JSON(http.StatusOK, gin.H{"status": status, "path": data.FilePath, "file": st})
}
