package web

import (
	"github.com/gin-gonic/gin"
)

// UploadsPathPrefix is the public path uploaded thumbnails are served under.
const UploadsPathPrefix = "/uploads"

// MountUploads serves files from directory under UploadsPathPrefix without
// directory listings.
func MountUploads(router gin.IRouter, directory string) {
	group := router.Group(UploadsPathPrefix, func(contextGin *gin.Context) {
		contextGin.Header("Cache-Control", "public, max-age=86400")
		contextGin.Header("X-Content-Type-Options", "nosniff")
		contextGin.Next()
	})
	group.StaticFS("/", gin.Dir(directory, false))
}
