package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eosc4cancer/cbiobridge/pkg/api/types/bridge"
	apierr "github.com/eosc4cancer/cbiobridge/pkg/api/types/errors"
	xe "github.com/eosc4cancer/cbiobridge/pkg/errors"
	"github.com/labstack/echo/v4"
)

// Images stores uploaded images in a directory.
type Images struct {
	Directory string

	// prefix of image URLs in responses. When empty, the URL of the request is used.
	PublicURL string
}

func notConfigured(what string) *echo.HTTPError {
	return apierr.NotImplemented(what+" is not configured", "ask your system admin.")
}

func (im *Images) location(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	return filepath.Join(im.Directory, name), nil
}

func (im *Images) urlOf(c echo.Context, name string) string {
	base := im.PublicURL
	if base == "" {
		base = c.Scheme() + "://" + c.Request().Host
	}
	return strings.TrimSuffix(base, "/") + "/images/" + url.PathEscape(name)
}

// UploadImageHandler stores the "file" of a multipart form.
//
// When the image exists, it responds 409 unless the form "overwrite" is true.
func UploadImageHandler(im *Images) echo.HandlerFunc {
	return func(c echo.Context) error {
		if im == nil {
			return notConfigured("image upload")
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return apierr.BadRequest(`multipart form with "file" is required.`, err)
		}
		overwrite := false
		if o := c.FormValue("overwrite"); o != "" {
			if overwrite, err = strconv.ParseBool(o); err != nil {
				return apierr.BadRequest(`"overwrite" should be true or false.`, err)
			}
		}

		name := filepath.Base(fh.Filename)
		location, err := im.location(name)
		if err != nil {
			return httpError(err)
		}

		message := fmt.Sprintf("file '%s' saved at '%s'", fh.Filename, location)
		if _, err := os.Stat(location); err == nil {
			if !overwrite {
				return apierr.Conflict(
					fmt.Sprintf("Image named '%s' already exists.", name),
					apierr.WithAdvice("Set overwrite to true to replace it."),
				)
			}
			message = fmt.Sprintf("file '%s' overwritten at '%s'", fh.Filename, location)
		} else if !errors.Is(err, os.ErrNotExist) {
			return apierr.InternalServerError(err)
		}

		src, err := fh.Open()
		if err != nil {
			return apierr.InternalServerError(err)
		}
		defer src.Close()
		if err := store(location, src); err != nil {
			return apierr.InternalServerError(err)
		}
		c.Logger().Info(message)

		return c.JSON(http.StatusOK, bridge.ImageUploaded{Info: message, URL: im.urlOf(c, name)})
	}
}

// store writes into a temporary file next to location, then renames it.
func store(location string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		return xe.Wrap(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(location), "."+filepath.Base(location)+".*")
	if err != nil {
		return xe.Wrap(err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return xe.Wrap(err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return xe.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return xe.Wrap(err)
	}
	return xe.Wrap(os.Rename(tmp.Name(), location))
}

func imageNotFound() *echo.HTTPError {
	return apierr.NotFound(apierr.WithAdvice("Image not found"))
}

func GetImageHandler(im *Images, nameParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if im == nil {
			return notConfigured("image upload")
		}
		location, err := im.location(c.Param(nameParam))
		if err != nil {
			return httpError(err)
		}
		if st, err := os.Stat(location); errors.Is(err, os.ErrNotExist) || (err == nil && st.IsDir()) {
			return imageNotFound()
		} else if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.File(location)
	}
}

func DeleteImageHandler(im *Images, nameParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if im == nil {
			return notConfigured("image upload")
		}
		name := c.Param(nameParam)
		location, err := im.location(name)
		if err != nil {
			return httpError(err)
		}
		if err := os.Remove(location); errors.Is(err, os.ErrNotExist) {
			return imageNotFound()
		} else if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, bridge.Detail{Detail: fmt.Sprintf("Image '%s' deleted successfully", name)})
	}
}
