package user

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	msgUsernameNull    = "Username cannot be null"
	msgUsernameSize    = "Must have min 4 and max 32 characters"
	msgEmailNull       = "Email cannot be null"
	msgEmailInvalid    = "Email is not valid"
	msgEmailInUse      = "E-mail in use"
	msgPasswordNull    = "Password cannot be null"
	msgPasswordSize    = "Password must be at least 6 characters"
	msgPasswordPattern = "Password must have at least 1 uppercase, 1 lowercase letter and 1 number"
)

// messages maps "<json field>.<tag>" to the message returned to clients.
var messages = map[string]string{
	"username.required": msgUsernameNull,
	"username.min":      msgUsernameSize,
	"username.max":      msgUsernameSize,
	"email.required":    msgEmailNull,
	"email.email":       msgEmailInvalid,
	"password.required": msgPasswordNull,
	"password.min":      msgPasswordSize,
	"password.password": msgPasswordPattern,
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// only fails on a programming error (duplicate tag)
	if err := v.RegisterValidation("password", strongPassword); err != nil {
		panic(err)
	}
	return v
}

// fieldErrors validates s and returns the first failing rule per field,
// translated to client messages. It returns nil when s is valid.
func fieldErrors(v *validator.Validate, s any) (map[string]string, error) {
	err := v.Struct(s)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		fields[fe.Field()] = msg
	}
	return fields, nil
}
