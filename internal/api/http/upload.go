package http

import (
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"ozzus/pm-tracker/internal/domain"
)

// readUpload reads one multipart file field, refusing files above limit.
func readUpload(c *gin.Context, field string, limit int64) (string, []byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", nil, domain.NewValidationError("multipart field %q is required", field)
	}
	if fh.Size > limit {
		return "", nil, domain.NewValidationError("%s is %d bytes, limit is %d", fh.Filename, fh.Size, limit)
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, errors.Wrap(err, "open upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return "", nil, errors.Wrap(err, "read upload")
	}
	if int64(len(data)) > limit {
		return "", nil, domain.NewValidationError("%s exceeds %d bytes", fh.Filename, limit)
	}
	return fh.Filename, data, nil
}

func pathIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "task index %q is not a number", c.Param("index"))
		return 0, false
	}
	return idx, true
}
