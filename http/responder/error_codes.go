package responder

import (
	"net/http"

	apperrors "github.com/leeforge/huddle-media/errors"
)

const (
	ErrCodeBadRequest       = 4000 // 请求格式错误
	ErrCodeBindFailed       = 4001 // 参数绑定错误
	ErrCodeValidationFailed = 4002 // 数据验证失败
	ErrCodeRouteNotFound    = 4004 // 路由不存在
	ErrCodeForbidden        = 4005 // 来源不允许
	ErrCodeMethodNotAllowed = 4006 // 方法不允许
	ErrCodeUnreadableImage  = 4010 // 图片无法解码
	ErrCodeBodyTooLarge     = 4013 // 请求体过大
	ErrCodeTooManyRequests  = 4029 // 请求过于频繁
	ErrCodeTimeout          = 4080 // 请求超时

	ErrCodeInternalServer  = 5000 // 内部服务器错误
	ErrCodeEncodeFailed    = 5001 // 图片编码失败
	ErrCodeExternalService = 5005 // 远程图片获取失败
)

var errorMessages = map[int]string{
	ErrCodeBadRequest:       "Bad Request",
	ErrCodeBindFailed:       "Invalid Request Body",
	ErrCodeValidationFailed: "Validation Failed",
	ErrCodeRouteNotFound:    "Route Not Found",
	ErrCodeForbidden:        "Forbidden",
	ErrCodeMethodNotAllowed: "Method Not Allowed",
	ErrCodeUnreadableImage:  "Unreadable Image",
	ErrCodeBodyTooLarge:     "Request Body Too Large",
	ErrCodeTooManyRequests:  "Too Many Requests",
	ErrCodeTimeout:          "Request Timeout",
	ErrCodeInternalServer:   "Internal Server Error",
	ErrCodeEncodeFailed:     "Image Encoding Failed",
	ErrCodeExternalService:  "Image Source Unavailable",
}

func GetErrorMessage(code int) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Unknown Error"
}

func NewError(code int, message string) Error {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return Error{
		Code:    code,
		Message: message,
	}
}

func NewErrorWithDetails(code int, message string, details any) Error {
	err := NewError(code, message)
	err.Details = details
	return err
}

// codeFor maps an application error type to a response code.
func codeFor(appErr *apperrors.AppError) int {
	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		return ErrCodeValidationFailed
	case apperrors.ErrorTypeDecode:
		return ErrCodeUnreadableImage
	case apperrors.ErrorTypeSecurity:
		return ErrCodeForbidden
	case apperrors.ErrorTypeIO:
		if appErr.Code == apperrors.CodeSourceTooLarge {
			return ErrCodeBodyTooLarge
		}
		return ErrCodeExternalService
	case apperrors.ErrorTypeTimeout:
		return ErrCodeTimeout
	default:
		if appErr.Code == apperrors.CodeEncodeFailed {
			return ErrCodeEncodeFailed
		}
		return ErrCodeInternalServer
	}
}

// FromAppError converts err into a status and an error payload. Internal
// and unknown errors hide their message.
func FromAppError(err error) (int, Error) {
	appErr := apperrors.FromError(err)

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if appErr.Code == apperrors.CodeSourceTooLarge {
		status = http.StatusRequestEntityTooLarge
	}

	code := codeFor(appErr)
	payload := NewError(code, appErr.Error())
	payload.Type = appErr.Code
	if len(appErr.Details) > 0 {
		payload.Details = appErr.Details
	}
	if status >= http.StatusInternalServerError {
		payload.Message = GetErrorMessage(code)
		payload.Details = nil
	}
	return status, payload
}
