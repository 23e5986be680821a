package principal

import "errors"

var ErrUnauthenticated = errors.New("principal.errors.unauthenticated")
