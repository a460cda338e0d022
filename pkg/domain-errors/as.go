package domainerrors

import "errors"

// As is errors.As, re-exported alongside Is.
func As(err error, target any) bool {
	return errors.As(err, target)
}
