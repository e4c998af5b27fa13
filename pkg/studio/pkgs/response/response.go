package response

import (
	"errors"

	"github.com/Fl0rencess720/inkwell/pkg/content"
	"github.com/gin-gonic/gin"
)

type ErrorCode uint

const (
	ServerError ErrorCode = iota
	FormError
	PathTraversal
	InvalidName
	InvalidTarget
	NotFound
	AlreadyExists
	PayloadTooLarge
	TreeTooDeep
	ExternalProcessFailed

	NoError
)

var HttpCode = map[ErrorCode]int{
	ServerError:           500,
	FormError:             400,
	PathTraversal:         403,
	InvalidName:           400,
	InvalidTarget:         400,
	NotFound:              404,
	AlreadyExists:         409,
	PayloadTooLarge:       413,
	TreeTooDeep:           422,
	ExternalProcessFailed: 502,
}

var Message = map[ErrorCode]string{
	ServerError:           "Server Error",
	FormError:             "Form Error",
	PathTraversal:         "Path Traversal",
	InvalidName:           "Invalid Name",
	InvalidTarget:         "Invalid Target",
	NotFound:              "Not Found",
	AlreadyExists:         "Already Exists",
	PayloadTooLarge:       "Payload Too Large",
	TreeTooDeep:           "Tree Too Deep",
	ExternalProcessFailed: "External Process Failed",
}

var kindCodes = map[content.Kind]ErrorCode{
	content.KindPathTraversal:         PathTraversal,
	content.KindInvalidName:           InvalidName,
	content.KindInvalidTarget:         InvalidTarget,
	content.KindNotFound:              NotFound,
	content.KindAlreadyExists:         AlreadyExists,
	content.KindPayloadTooLarge:       PayloadTooLarge,
	content.KindTreeTooDeep:           TreeTooDeep,
	content.KindExternalProcessFailed: ExternalProcessFailed,
}

func SuccessResponse(c *gin.Context, data any) {
	c.JSON(200, gin.H{
		"msg":  "success",
		"code": 200,
		"data": data,
	})
}

func ErrorResponse(c *gin.Context, code ErrorCode) {
	httpStatus, ok := HttpCode[code]
	if !ok {
		httpStatus = 403
	}
	msg, ok := Message[code]
	if !ok {
		msg = "Unknown Error"
	}

	c.JSON(httpStatus, gin.H{
		"code": code,
		"msg":  msg,
	})
}

// ErrorDetailResponse is ErrorResponse with a caller-facing detail message.
func ErrorDetailResponse(c *gin.Context, code ErrorCode, detail string) {
	httpStatus, ok := HttpCode[code]
	if !ok {
		httpStatus = 403
	}
	msg, ok := Message[code]
	if !ok {
		msg = "Unknown Error"
	}

	c.JSON(httpStatus, gin.H{
		"code":   code,
		"msg":    msg,
		"detail": detail,
	})
}

// CodeOf maps a content error to its response code. Errors outside the
// content taxonomy are ServerError.
func CodeOf(err error) ErrorCode {
	if code, ok := kindCodes[content.KindOf(err)]; ok {
		return code
	}
	return ServerError
}

// ContentError writes the response for a failed content operation. Internal
// failures never leak their text to the caller.
func ContentError(c *gin.Context, err error) {
	code := CodeOf(err)
	if code == ServerError {
		_ = c.Error(err)
		ErrorResponse(c, ServerError)
		return
	}

	var cerr *content.Error
	if errors.As(err, &cerr) {
		ErrorDetailResponse(c, code, cerr.Message())
		return
	}
	ErrorResponse(c, code)
}
