package refcount

import "errors"

// ErrAlreadyBound is returned by Out when the handle already holds a
// resource. Writing through the out pointer would overwrite a held
// reference without releasing it and leak a count.
var ErrAlreadyBound = errors.New("refcount: handle already bound")
