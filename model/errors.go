package model

import "errors"

// Sentinel errors for the model driver: budget overflow and lifecycle
// misuse, surfaced above the gpu package's own ErrDispatch. Both leave
// the Model in state `ready`/`idle`; no cached corruption follows a
// failed forward pass.
var (
	ErrBudgetExceeded = errors.New("model: token count would exceed max context")
	ErrNotReady       = errors.New("model: forward called before model reached state ready")
)
