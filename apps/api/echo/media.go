package echoapi

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	mediasvc "github.com/trezcool/shule/services/media"
)

const mediaPrefix = "/media/"

// imageURL returns where a node image can be fetched from. Images stored in the media
// directory are served as thumbnails; absolute URLs are kept.
func imageURL(image string) string {
	switch {
	case image == "":
		return ""
	case strings.Contains(image, "://"), strings.HasPrefix(image, "/"):
		return image
	}
	return mediaPrefix + image + "?size=" + strconv.Itoa(mediasvc.DefaultThumbSize)
}

func registerMedia(app *echo.Echo, thumbs *mediasvc.Thumbnailer) {
	app.GET(mediaPrefix+"*", func(ctx echo.Context) error {
		size, _ := strconv.Atoi(ctx.QueryParam("size"))
		var buf bytes.Buffer
		if err := thumbs.Thumbnail(&buf, ctx.Param("*"), size); err != nil {
			return err
		}
		ctx.Response().Header().Set("Cache-Control", "public, max-age=86400")
		return ctx.Blob(http.StatusOK, "image/jpeg", buf.Bytes())
	})
}
