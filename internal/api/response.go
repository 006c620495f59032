package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// queryResponse is the success envelope for a /query call: the last
// statement's result plus the batch's wall-clock runtime in seconds.
type queryResponse struct {
	Result  interface{} `json:"result"`
	Runtime float64     `json:"runtime"`
}

// errorResponse is the envelope for a failed call.
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeResult(c *gin.Context, result interface{}, runtime float64) {
	c.JSON(http.StatusOK, queryResponse{Result: result, Runtime: runtime})
}

func writeError(c *gin.Context, code int, detail string) {
	c.JSON(code, errorResponse{Detail: detail})
}

// BadRequestError sends a 400 with the given detail message.
func BadRequestError(c *gin.Context, detail string) {
	writeError(c, http.StatusBadRequest, detail)
}

// TooManyRequestsError sends a 429 with the given detail message.
func TooManyRequestsError(c *gin.Context, detail string) {
	writeError(c, http.StatusTooManyRequests, detail)
}

// PayloadTooLargeError sends a 413 with the given detail message.
func PayloadTooLargeError(c *gin.Context, detail string) {
	writeError(c, http.StatusRequestEntityTooLarge, detail)
}

// InternalError sends a 500 with the given detail message.
func InternalError(c *gin.Context, detail string) {
	writeError(c, http.StatusInternalServerError, detail)
}
