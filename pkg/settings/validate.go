package settings

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is a singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("server_addr", isServerAddr); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("key_prefix", isKeyPrefix); err != nil {
		panic(err)
	}
}

// Validate checks s against the struct tags of the settings types.
func Validate(s *Settings) error {
	if s == nil {
		return fmt.Errorf("%w: settings cannot be nil", ErrInvalid)
	}
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// isServerAddr accepts "host:port" and bare hosts; the port, when present,
// must be in range.
func isServerAddr(fl validator.FieldLevel) bool {
	addr := strings.TrimSpace(fl.Field().String())
	if addr == "" {
		return false
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) && addrErr.Err == "missing port in address" {
			return strings.Trim(addr, "[]") != ""
		}
		return false
	}
	if host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n > 0 && n <= 65535
}

// isKeyPrefix rejects prefixes memcached would refuse as part of a key.
func isKeyPrefix(fl validator.FieldLevel) bool {
	prefix := fl.Field().String()
	for i := 0; i < len(prefix); i++ {
		if c := prefix[i]; c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}

// formatValidationError converts validator errors into a readable error.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		switch e.Tag() {
		case "server_addr":
			msgs = append(msgs, fmt.Sprintf("%s: %q is not a valid host:port", e.Namespace(), e.Value()))
		case "key_prefix":
			msgs = append(msgs, fmt.Sprintf("%s: %q must not contain whitespace or control characters", e.Namespace(), e.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s: must be one of [%s]", e.Namespace(), e.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s: must be >= %s", e.Namespace(), e.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s: must be at most %s characters", e.Namespace(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed %s validation", e.Namespace(), e.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
