package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Def identifies one failure kind of the generation flow. The set below is
// closed; callers compare with errors.As + Code rather than string matching.
type Def struct {
	Status int
	Code   string
	Title  string
}

var (
	Internal = Def{http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal Server Error"}
	BadRequest = Def{http.StatusBadRequest, "BAD_REQUEST", "Bad Request"}

	FolderNotAvailable = Def{http.StatusNotFound, "FOLDER_NOT_AVAILABLE", "Folder Not Available"}

	TemplateNotFound          = Def{http.StatusNotFound, "TEMPLATE_NOT_FOUND", "Template Not Found"}
	TemplateClientUnavailable = Def{http.StatusServiceUnavailable, "TEMPLATE_CLIENT_UNAVAILABLE", "Template Storage Not Available"}
	TemplateClientError       = Def{http.StatusInternalServerError, "TEMPLATE_CLIENT_ERROR", "Template Client Error"}

	InstitutionNotFound     = Def{http.StatusPreconditionFailed, "INSTITUTION_NOT_FOUND", "Institution Not Found"}
	InstitutionParsingError = Def{http.StatusInternalServerError, "INSTITUTION_PARSING_ERROR", "Parsing Error for Institution Data"}

	MessageValidationError = Def{http.StatusBadRequest, "MESSAGE_VALIDATION_ERROR", "Message Validation Error"}

	PdfEngineError  = Def{http.StatusInternalServerError, "PDF_ENGINE_ERROR", "PDF Engine Error"}
	NoticeSaveError = Def{http.StatusInternalServerError, "NOTICE_SAVE_ERROR", "Notice Save Error"}
)

type Error struct {
	Def    Def
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Def.Code, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Def.Code, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Def.Code, e.Err)
	default:
		return e.Def.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(def Def, detail string) *Error {
	return &Error{Def: def, Detail: detail}
}

func Newf(def Def, format string, args ...interface{}) *Error {
	return &Error{Def: def, Detail: fmt.Sprintf(format, args...)}
}

func Wrap(def Def, err error) *Error {
	return &Error{Def: def, Err: err}
}

// Is reports whether err is (or wraps) an application error of the given kind.
func Is(err error, def Def) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Def.Code == def.Code
}

// StatusOf maps any error to the transport status code of its failure kind;
// unknown errors count as internal.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Def.Status != 0 {
		return ae.Def.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the catalog code for an error, INTERNAL_SERVER_ERROR when
// the error does not carry one.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Def.Code != "" {
		return ae.Def.Code
	}
	return Internal.Code
}
