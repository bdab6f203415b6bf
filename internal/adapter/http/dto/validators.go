package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"relief-offline-ledger/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var hexStringRe = regexp.MustCompile(`^0x[0-9a-fA-F]{1,128}$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("hex_address", validateHexAddress)
		_ = v.RegisterValidation("hex_string", validateHexString)
	}
}

// validateHexAddress accepts 0x-prefixed hex of up to 20 bytes.
func validateHexAddress(fl validator.FieldLevel) bool {
	return domain.IsAddress(strings.TrimSpace(fl.Field().String()))
}

// validateHexString accepts a non-empty 0x-prefixed hex string.
func validateHexString(fl validator.FieldLevel) bool {
	return hexStringRe.MatchString(strings.TrimSpace(fl.Field().String()))
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
//
// The sanitize tag opts a field out: `sanitize:"trim"` only trims, and
// `sanitize:"-"` leaves the value untouched. Signed material uses these so the
// stored bytes match what the client signed.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		mode := rt.Field(i).Tag.Get("sanitize")
		if mode == "-" {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String(), mode))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String(), mode))
			}
		}
	}
}

func sanitize(s, mode string) string {
	s = strings.TrimSpace(s)
	if mode == "trim" {
		return s
	}
	return html.EscapeString(s)
}
