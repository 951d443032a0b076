package core

// error_messages.go maps pipeline and store errors to coded user messages.
//
// Codes are grouped by category so support staff can tell at a glance where
// a request failed:
//
//	FILE001-FILE099  upload and spreadsheet decoding
//	VAL001-VAL099    request and row validation
//	IMP001-IMP099    import pipeline scheduling
//	DB001-DB099      store constraints and connectivity
//	AUTH001-AUTH099  authentication
//	RATE001          request throttling
//	ERR000           anything else; the technical error is in the logs
//
// Typed and sentinel errors are matched first with errors.Is / errors.As.
// Errors that only surface as text (driver messages, wrapped strings from
// libraries) fall back to case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/CrewImport/internal/schema"
	"github.com/JonMunkholm/CrewImport/internal/sheet"
	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage is what a client sees for a failed request.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
	Status  int    // HTTP status for the web layer
}

type errorTarget struct {
	target error
	msg    UserMessage
}

var errorTargets = []errorTarget{
	{sheet.ErrParse, UserMessage{
		Message: "Excel文件为空或格式不正确",
		Action:  "Upload the .xlsx template or a UTF-8 / GB18030 CSV file",
		Code:    "FILE002",
		Status:  http.StatusBadRequest,
	}},
	{sheet.ErrEmptyFile, UserMessage{
		Message: "Excel文件为空或格式不正确",
		Action:  "Fill in at least one data row below the header",
		Code:    "FILE005",
		Status:  http.StatusBadRequest,
	}},
	{schema.ErrUnknownEntity, UserMessage{
		Message: "Invalid import type",
		Action:  "Use crew or certificate",
		Code:    "VAL001",
		Status:  http.StatusBadRequest,
	}},
	{ErrValidationFailed, UserMessage{
		Message: "Data validation failed",
		Action:  "Fix the reported rows and upload the file again",
		Code:    "VAL002",
		Status:  http.StatusBadRequest,
	}},
	{ErrTooManyImports, UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
		Status:  http.StatusServiceUnavailable,
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "IMP003",
		Status:  http.StatusGatewayTimeout,
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "IMP002",
		Status:  http.StatusBadRequest,
	}},
}

// pgCodes maps PostgreSQL SQLSTATE codes to messages.
var pgCodes = map[string]UserMessage{
	"23505": {
		Message: "A record with this value already exists",
		Action:  "Check the file for values that are already in the system",
		Code:    "DB001",
		Status:  http.StatusConflict,
	},
	"23503": {
		Message: "Referenced record does not exist",
		Action:  "Import the referenced crew first",
		Code:    "DB003",
		Status:  http.StatusConflict,
	},
	"40P01": {
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
		Status:  http.StatusServiceUnavailable,
	},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"duplicate key", pgCodes["23505"]},
	{"violates foreign key", pgCodes["23503"]},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
		Status:  http.StatusServiceUnavailable,
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
		Status:  http.StatusServiceUnavailable,
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB006",
		Status:  http.StatusGatewayTimeout,
	}},
	{"deadlock", pgCodes["40P01"]},
	{"request body too large", UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller batches",
		Code:    "FILE001",
		Status:  http.StatusRequestEntityTooLarge,
	}},
	{"file too large", UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller batches",
		Code:    "FILE001",
		Status:  http.StatusRequestEntityTooLarge,
	}},
	{"encoding error", UserMessage{
		Message: "File contains invalid characters",
		Action:  "Save the file as UTF-8 or GB18030",
		Code:    "FILE003",
		Status:  http.StatusBadRequest,
	}},
	{"no file uploaded", UserMessage{
		Message: "No file uploaded",
		Action:  "Attach the spreadsheet in the file field",
		Code:    "FILE004",
		Status:  http.StatusBadRequest,
	}},
	{"missing bearer token", UserMessage{
		Message: "Access token required",
		Action:  "Sign in and retry with an Authorization header",
		Code:    "AUTH001",
		Status:  http.StatusUnauthorized,
	}},
	{"invalid token", UserMessage{
		Message: "Invalid or expired token",
		Action:  "Sign in again",
		Code:    "AUTH002",
		Status:  http.StatusUnauthorized,
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
		Status:  http.StatusTooManyRequests,
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError converts an error to a user message. A nil error maps to the zero value.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, et := range errorTargets {
		if errors.Is(err, et.target) {
			return et.msg
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := pgCodes[pgErr.Code]; ok {
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
