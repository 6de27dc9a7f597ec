package router

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"github.com/pterodactyl/scribe/router/middleware"
	"github.com/pterodactyl/scribe/system"
)

func getIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "scribe API online"})
}

// Returns information about the system that the daemon is running on, along
// with the root directory that writes are confined to.
func getSystemInformation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":      system.Version,
		"os":           runtime.GOOS,
		"architecture": runtime.GOARCH,
		"cpu_count":    runtime.NumCPU(),
		"root":         middleware.ExtractFilesystem(c).Path(),
	})
}
